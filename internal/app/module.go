package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/prepstack/billing/internal/app/api/server"
	"github.com/prepstack/billing/internal/app/service/rollout"
	"github.com/prepstack/billing/internal/app/service/subscription"
	"github.com/prepstack/billing/internal/app/service/verification"
	"github.com/prepstack/billing/internal/app/service/webhook"
	"github.com/prepstack/billing/internal/platform/db"
	"github.com/prepstack/billing/internal/platform/razorpay"
	"github.com/prepstack/billing/internal/platform/store"
	"github.com/prepstack/billing/pkg/config"
	"github.com/prepstack/billing/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	store.Module,
	razorpay.Module,
	server.Module,
	rollout.Module,
	subscription.Module,
	verification.Module,
	webhook.Module,
)
