package cli

import (
	"github.com/joomcode/errorx"
)

// Option represents a Runner configuration function
type Option func(*Runner) error

// WithName is an Option to set Runner name
func WithName(name string) Option {
	return func(r *Runner) error {
		r.name = name
		return nil
	}
}

// WithBroker is an Option to set Runner broker client factory
func WithBroker(fn brokerFactory) Option {
	return func(r *Runner) error {
		if r.brokerFactory != nil {
			return errorx.IllegalArgument.New("Broker has been already assigned")
		}
		r.brokerFactory = fn
		return nil
	}
}

// WithCredentials is an Option to set Runner API keys store factory
func WithCredentials(fn credentialsFactory) Option {
	return func(r *Runner) error {
		if r.credentialsFactory != nil {
			return errorx.IllegalArgument.New("Credentials store has been already assigned")
		}
		r.credentialsFactory = fn
		return nil
	}
}

// WithShutdownable adds a new shutdownable instance to be shutdown at server stop
func WithShutdownable(instance Shutdownable) Option {
	return func(r *Runner) error {
		r.shutdownables = append(r.shutdownables, instance)
		return nil
	}
}
