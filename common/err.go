package common

// Returns the first non-nil error.
func Or(l error, r error) error {
	if l != nil {
		return l
	}
	return r
}

// Walks the cause chain (as built by github.com/pkg/errors) looking for
// any of the given sentinels.  Returns the matched sentinel, or the
// original error when none matches.
func Extract(err error, sentinels ...error) error {
	if err == nil {
		return nil
	}

	for cur := err; cur != nil; cur = cause(cur) {
		for _, s := range sentinels {
			if cur == s || cur.Error() == s.Error() {
				return s
			}
		}
	}

	return err
}

func cause(err error) error {
	type causer interface {
		Cause() error
	}

	c, ok := err.(causer)
	if !ok {
		return nil
	}

	return c.Cause()
}
