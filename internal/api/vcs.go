package api

import (
	"context"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/vcs"
)

func (s *service) VCSStatus(ctx context.Context) (*vcs.Status, error) {
	if s.vcsAdapter == nil {
		return nil, errs.New(errs.CodeInternal, "vcs adapter not configured")
	}
	return s.vcsAdapter.Status(ctx)
}

func (s *service) VCSInit(ctx context.Context) error {
	if s.vcsAdapter == nil {
		return errs.New(errs.CodeInternal, "vcs adapter not configured")
	}
	return s.vcsAdapter.Init(ctx)
}

func (s *service) VCSCommit(ctx context.Context, files []string, message string) (string, error) {
	if s.vcsAdapter == nil {
		return "", errs.New(errs.CodeInternal, "vcs adapter not configured")
	}
	return s.vcsAdapter.Commit(ctx, files, message)
}

func (s *service) VCSDiff(ctx context.Context) (string, error) {
	if s.vcsAdapter == nil {
		return "", errs.New(errs.CodeInternal, "vcs adapter not configured")
	}
	return s.vcsAdapter.Diff(ctx)
}

func (s *service) Pause(ctx context.Context, projectID string) error {
	cs, err := s.db.GetControlState(projectID)
	if err != nil {
		return err
	}
	cs.Paused = true
	return s.db.UpdateControlState(cs)
}

func (s *service) Continue(ctx context.Context, projectID string) error {
	cs, err := s.db.GetControlState(projectID)
	if err != nil {
		return err
	}
	cs.Paused = false
	return s.db.UpdateControlState(cs)
}

func (s *service) SetLimits(ctx context.Context, projectID string, maxAttempts int) error {
	if maxAttempts < 1 {
		return errs.New(errs.CodeValidation, "max_attempts must be at least 1")
	}
	cs, err := s.db.GetControlState(projectID)
	if err != nil {
		return err
	}
	cs.MaxAttempts = maxAttempts
	return s.db.UpdateControlState(cs)
}
