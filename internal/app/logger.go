package app

import (
	"go.uber.org/zap"
)

// NewLogger returns a zap logger formatted for env
// prod JSON logs at INFO level
// others console logs at DEBUG level
func NewLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
