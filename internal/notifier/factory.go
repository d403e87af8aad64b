package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/pkg/helper"
	"github.com/amoylab/oscbridge/pkg/utils"
)

// Type represents the type of notifier
type Type string

const (
	// TypeSignal represents signal-based notifier
	TypeSignal Type = "signal"
	// TypeAPI represents API-based notifier
	TypeAPI Type = "api"
	// TypeRedis represents Redis-based notifier
	TypeRedis Type = "redis"
	// TypeComposite represents composite notifier
	TypeComposite Type = "composite"
)

// NewNotifier creates a new notifier based on the configuration. role
// overrides cfg.Role when not empty.
func NewNotifier(ctx context.Context, logger *zap.Logger, cfg *config.NotifierConfig, role config.NotifierRole) (Notifier, error) {
	if role == "" {
		role = config.NotifierRole(cfg.Role)
	}
	if role == "" {
		role = config.RoleBoth // Default to both if not specified
	}

	switch Type(cfg.Type) {
	case TypeSignal:
		return newSignal(ctx, logger, cfg, role), nil
	case TypeAPI:
		return NewAPINotifier(logger, "", cfg.API.Port, role, cfg.API.TargetURL)
	case TypeRedis:
		return NewRedisNotifier(logger, cfg.Redis, role)
	case TypeComposite:
		notifiers := []Notifier{newSignal(ctx, logger, cfg, role)}
		apiNotifier, err := NewAPINotifier(logger, "", cfg.API.Port, role, cfg.API.TargetURL)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, apiNotifier)
		// Add Redis notifier if configured
		if cfg.Redis.Addr != "" {
			redisNotifier, err := NewRedisNotifier(logger, cfg.Redis, role)
			if err != nil {
				_ = apiNotifier.Shutdown(ctx)
				return nil, err
			}
			notifiers = append(notifiers, redisNotifier)
		}
		return NewCompositeNotifier(ctx, logger, notifiers...), nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
	}
}

func newSignal(ctx context.Context, logger *zap.Logger, cfg *config.NotifierConfig, role config.NotifierRole) *SignalNotifier {
	return NewSignalNotifier(ctx, logger, helper.GetPIDPath(cfg.Signal.PID), utils.ParseSignal(cfg.Signal.Signal), role)
}
