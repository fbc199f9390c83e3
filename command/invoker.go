package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/core"
)

// DispatchFunc hands a message to the command bus.
type DispatchFunc func(ctx context.Context, msg SaveStateMessage) error

// DispatcherInvoker accepts save requests from the inbound surfaces and
// dispatches them to the subscribed handler without awaiting the capture.
// Validation happens before accepting; once accepted, failures surface only
// through logs and dead-lettering.
type DispatcherInvoker struct {
	Dispatch DispatchFunc
	Logger   core.Logger
}

// NewDispatcherInvoker wires the invoker to the process-wide dispatcher.
func NewDispatcherInvoker() *DispatcherInvoker {
	_, logger := glog.Resolve("command", nil, nil)
	return &DispatcherInvoker{
		Dispatch: func(ctx context.Context, msg SaveStateMessage) error {
			return commanddispatcher.Dispatch(ctx, msg)
		},
		Logger: glog.Ensure(logger),
	}
}

// InvokeSave validates and hands off the request. The dispatch runs on its
// own goroutine with the caller's cancellation detached, so the webhook
// response does not wait on the capture and a closed request context does
// not abort it.
func (i *DispatcherInvoker) InvokeSave(ctx context.Context, req core.SaveStateRequest) error {
	if i == nil || i.Dispatch == nil {
		return commandDependencyError("command: invoker is not configured")
	}
	msg := SaveStateMessage{Request: req}
	if err := msg.Validate(); err != nil {
		return err
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if err := i.Dispatch(detached, msg); err != nil && i.Logger != nil {
			i.Logger.WithContext(detached).Error("save state dispatch failed",
				"workspace_name", req.WorkspaceName,
				"source", req.Source,
				"error", err.Error())
		}
	}()
	return nil
}

// Subscribe registers the save-state handler on the process-wide dispatcher.
func Subscribe(cmd gocmd.Commander[SaveStateMessage], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}
