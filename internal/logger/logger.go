package logger

import "go.uber.org/zap"

// New builds the service-wide sugared logger. Production gets the JSON
// encoder with sampling; anything else gets the console setup with stack
// traces on warnings.
func New(env string) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if env == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
