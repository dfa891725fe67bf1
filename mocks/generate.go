package mocks

//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/rxtech-lab/argo-bot/internal/broker Broker
//go:generate mockgen -destination=./mock_source.go -package=mocks github.com/rxtech-lab/argo-bot/internal/market Source
//go:generate mockgen -destination=./mock_store.go -package=mocks github.com/rxtech-lab/argo-bot/internal/state Store
//go:generate mockgen -destination=./mock_notifier.go -package=mocks github.com/rxtech-lab/argo-bot/internal/notify Notifier
//go:generate mockgen -destination=./mock_evaluator.go -package=mocks github.com/rxtech-lab/argo-bot/internal/strategy Evaluator
//go:generate mockgen -destination=./mock_sizer.go -package=mocks github.com/rxtech-lab/argo-bot/internal/bot Sizer
