package common

import "io"

// The shared environment handed to every component: configuration,
// logging and the root shutdown control.
type Context interface {
	io.Closer

	Config() Config
	Logger() Logger
	Control() Control
}

type ctx struct {
	config Config
	logger Logger
	ctrl   Control
}

func NewContext(config Config) Context {
	return &ctx{config: config, logger: NewStandardLogger(config), ctrl: NewRootControl()}
}

func (c *ctx) Close() error {
	return c.ctrl.Close()
}

func (c *ctx) Config() Config {
	return c.config
}

func (c *ctx) Logger() Logger {
	return c.logger
}

func (c *ctx) Control() Control {
	return c.ctrl
}
