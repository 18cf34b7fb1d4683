package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"greenprint/internal/artifact"
	"greenprint/internal/logging"
	"greenprint/internal/render"
	"greenprint/internal/session"
)

// Service runs a session end to end: the stage chain, playbook assembly and
// the final write to disk, reporting lifecycle changes to the session
// manager along the way.
type Service struct {
	controller *Controller
	assembler  *render.Assembler
	sessions   *session.Manager
	store      *artifact.Store
	outputDir  string
}

// NewService wires the orchestration layer.
func NewService(controller *Controller, assembler *render.Assembler, sessions *session.Manager, store *artifact.Store, outputDir string) *Service {
	return &Service{
		controller: controller,
		assembler:  assembler,
		sessions:   sessions,
		store:      store,
		outputDir:  outputDir,
	}
}

// Run drives the session to completed or failed. The returned error mirrors
// what the session manager records; callers running in the background can
// ignore it.
func (s *Service) Run(ctx context.Context, sess *session.Session) error {
	progress := func(percent int, step string) {
		s.sessions.SetProgress(sess.ID, percent, step)
	}

	if err := s.controller.Run(ctx, sess, progress); err != nil {
		s.sessions.Fail(sess.ID, err)
		return err
	}

	progress(95, "Building training playbook")
	doc, err := s.assembler.Assemble(sess)
	if err != nil {
		s.sessions.Fail(sess.ID, err)
		return err
	}

	path, err := s.writePlaybook(sess.ID, doc)
	if err != nil {
		s.sessions.Fail(sess.ID, err)
		return err
	}

	s.sessions.Complete(sess.ID, path)
	return nil
}

// writePlaybook writes the document under outputDir/<session>/playbook.md,
// through a temp file and rename so readers never see a partial playbook.
func (s *Service) writePlaybook(sessionID, doc string) (string, error) {
	dir := filepath.Join(s.outputDir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	final := filepath.Join(dir, "playbook.md")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("failed to write playbook: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize playbook: %w", err)
	}

	logging.Render("Playbook written: session=%s path=%s size=%d", sessionID, final, len(doc))
	return final, nil
}

// RemoveOutputs deletes a session's artifacts and rendered playbook. Wired
// to the session manager's expiry callback.
func (s *Service) RemoveOutputs(sessionID string) {
	if err := s.store.Delete(sessionID); err != nil {
		logging.Get(logging.CategoryStore).Warn("Failed to delete artifacts for expired session %s: %v", sessionID, err)
	}
	dir := filepath.Join(s.outputDir, sessionID)
	if err := os.RemoveAll(dir); err != nil {
		logging.Get(logging.CategoryStore).Warn("Failed to remove outputs for expired session %s: %v", sessionID, err)
	}
}
