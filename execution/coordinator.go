package execution

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/testwise/runcore/codegen"
	"github.com/testwise/runcore/evidence"
	"github.com/testwise/runcore/fieldcrypt"
	"github.com/testwise/runcore/lib"
	"github.com/testwise/runcore/lib/fsext"
)

// DefaultRunTimeout bounds a single sandboxed run.
const DefaultRunTimeout = 10 * time.Minute

// Backend is the read side the coordinator needs from the management API.
type Backend interface {
	FetchActions(ctx context.Context, testcaseID string) (*evidence.ActionsResponse, error)
	FetchFileContent(ctx context.Context, serverPath string) (string, error)
}

// Updater is the write side: evidence status transitions and the final
// reconciling update.
type Updater interface {
	UpdateStatus(ctx context.Context, evidenceID string, status evidence.Status) error
	UpdateWithResults(ctx context.Context, evidenceID string, status evidence.Status, logs string, arts evidence.Artifacts) error
}

// Coordinator drives a testcase from recorded actions to a reconciled
// evidence record: fetch, decrypt, preprocess uploads, compile, run in a
// sandbox subprocess, collect artifacts, push results, clean up. Every
// collaborator is injected, so tests can run it entirely in memory.
type Coordinator struct {
	backend    Backend
	updater    Updater
	keys       fieldcrypt.KeyStore
	cipher     fieldcrypt.Cipher
	runner     Runner
	fs         afero.Fs
	logger     logrus.FieldLogger
	sandboxDir string
	timeout    time.Duration
}

func NewCoordinator(
	logger logrus.FieldLogger,
	backend Backend,
	updater Updater,
	keys fieldcrypt.KeyStore,
	cipher fieldcrypt.Cipher,
	runner Runner,
	fsys afero.Fs,
	sandboxDir string,
	timeout time.Duration,
) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Coordinator{
		backend:    backend,
		updater:    updater,
		keys:       keys,
		cipher:     cipher,
		runner:     runner,
		fs:         fsys,
		logger:     logger,
		sandboxDir: sandboxDir,
		timeout:    timeout,
	}
}

// TestcaseOptions parameterize one recorded-testcase run.
type TestcaseOptions struct {
	TestcaseID string
	EvidenceID string
	ProjectID  string
	Browser    string
	// Save controls whether evidence updates are pushed at all. Without it
	// the run is local-only.
	Save bool
}

// CodeOptions parameterize one already-compiled script run.
type CodeOptions struct {
	Code       string
	EvidenceID string
	Browser    string
	Save       bool
	// TempFiles are preprocessor outputs the run references. They are
	// deleted when the run finishes, no matter how it finishes.
	TempFiles []string
}

// ExecuteTestcase runs a recorded testcase end to end. It never returns an
// error: every failure mode is folded into the result. An action fetch or
// upload preprocessing failure aborts before any script file or run output
// directory exists.
func (c *Coordinator) ExecuteTestcase(ctx context.Context, opts TestcaseOptions) TestExecutionResult {
	start := time.Now()
	logger := c.logger.WithField("testcase_id", opts.TestcaseID)

	resp, err := c.backend.FetchActions(ctx, opts.TestcaseID)
	if err != nil {
		logger.WithError(err).Error("fetching actions failed")
		return failedResult(fmt.Errorf("fetching actions: %w", err), start)
	}

	actions := resp.Actions
	auth := resp.BasicAuth
	if key, ok := c.keys.Key(opts.ProjectID); ok {
		actions = c.decryptActions(logger, actions, key)
		auth = c.decryptBasicAuth(logger, auth, key)
	} else {
		logger.WithField("project_id", opts.ProjectID).
			Warn("no encryption key for project, using stored values as-is")
	}

	files, tempFiles, err := PreprocessFiles(ctx, c.fs, c.backend, actions, c.sandboxDir)
	if err != nil {
		logger.WithError(err).Error("preprocessing uploads failed")
		return failedResult(fmt.Errorf("preprocessing uploads: %w", err), start)
	}

	script, err := codegen.Compile(auth, actions, files)
	if err != nil {
		c.removeAll(tempFiles)
		logger.WithError(err).Error("compiling actions failed")
		return failedResult(fmt.Errorf("compiling actions: %w", err), start)
	}
	if script == "" {
		c.removeAll(tempFiles)
		return TestExecutionResult{
			Success:       true,
			Status:        evidence.StatusDraft,
			Logs:          "The testcase has no actions to execute.",
			ExecutionTime: time.Since(start),
		}
	}

	return c.ExecuteCode(ctx, CodeOptions{
		Code:       script,
		EvidenceID: opts.EvidenceID,
		Browser:    opts.Browser,
		Save:       opts.Save,
		TempFiles:  tempFiles,
	})
}

// ExecuteCode runs one compiled script in the sandbox. The evidence record,
// when saving, sees exactly one Running transition and one terminal update;
// script file, run output directory and temp files are removed regardless
// of outcome.
func (c *Coordinator) ExecuteCode(ctx context.Context, opts CodeOptions) (result TestExecutionResult) {
	start := time.Now()
	save := opts.Save && opts.EvidenceID != ""
	logger := c.logger.WithField("evidence_id", opts.EvidenceID)

	var scriptPath, outputDir string
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("run aborted")
			result = c.failAndReport(ctx, save, opts.EvidenceID, fmt.Errorf("run aborted: %v", r), start)
		}
		c.cleanup(scriptPath, outputDir, opts.TempFiles)
	}()

	if save {
		if err := c.updater.UpdateStatus(ctx, opts.EvidenceID, evidence.StatusRunning); err != nil {
			logger.WithError(err).Error("marking evidence running failed")
			return failedResult(fmt.Errorf("marking evidence running: %w", err), start)
		}
	}

	runID := uuid.NewString()
	logger = logger.WithField("run_id", runID)
	scriptPath = filepath.Join(c.sandboxDir, fmt.Sprintf("testcase_%s.js", runID))
	outputDir = filepath.Join(c.sandboxDir, "runs", runID)

	code := resolvePlaceholders(opts.Code, outputDir)
	if err := codegen.Validate(code); err != nil {
		logger.WithError(err).Error("script validation failed")
		return c.failAndReport(ctx, save, opts.EvidenceID, fmt.Errorf("validating script: %w", err), start)
	}

	if err := c.prepareRunDirs(outputDir); err != nil {
		logger.WithError(err).Error("preparing run directories failed")
		return c.failAndReport(ctx, save, opts.EvidenceID, err, start)
	}
	if err := afero.WriteFile(c.fs, scriptPath, []byte(code), 0o644); err != nil {
		logger.WithError(err).Error("writing script failed")
		return c.failAndReport(ctx, save, opts.EvidenceID, fmt.Errorf("writing script: %w", err), start)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.runner.Run(runCtx, RunSpec{
		Browser:    opts.Browser,
		ScriptPath: scriptPath,
		OutputDir:  outputDir,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("run timed out after %s", c.timeout)
		}
		logger.WithError(err).Error("run failed")
		return c.failAndReport(ctx, save, opts.EvidenceID, err, start)
	}

	status := evidence.StatusFailed
	if out.ExitCode == 0 {
		status = evidence.StatusPassed
	}
	logs := combineLogs(out)
	arts := c.collectArtifacts(logger, outputDir)

	if save {
		if err := c.updater.UpdateWithResults(ctx, opts.EvidenceID, status, logs, arts); err != nil {
			logger.WithError(err).Error("updating evidence failed")
			return failedResult(fmt.Errorf("updating evidence: %w", err), start)
		}
	}

	logger.WithFields(logrus.Fields{
		"status":    status,
		"exit_code": out.ExitCode,
	}).Info("run finished")

	return TestExecutionResult{
		Success:          status == evidence.StatusPassed,
		Status:           status,
		Logs:             logs,
		VideoURL:         arts.VideoPath,
		ImageURLs:        arts.ImagePaths,
		DatabaseFileURLs: arts.DatabaseExportPaths,
		APIFileURLs:      arts.APIExportPaths,
		ExecutionTime:    time.Since(start),
	}
}

func (c *Coordinator) decryptActions(logger logrus.FieldLogger, actions []lib.Action, key []byte) []lib.Action {
	out := make([]lib.Action, len(actions))
	for i, a := range actions {
		paths := fieldcrypt.ActionPaths(a)
		if len(paths) == 0 {
			out[i] = a
			continue
		}
		dec, _ := fieldcrypt.DecryptObject(logger, c.cipher, key, a, paths)
		out[i] = dec
	}
	return out
}

func (c *Coordinator) decryptBasicAuth(
	logger logrus.FieldLogger, auth *lib.BasicAuthentication, key []byte,
) *lib.BasicAuthentication {
	if auth == nil {
		return nil
	}
	paths := fieldcrypt.BasicAuthPaths(*auth)
	if len(paths) == 0 {
		return auth
	}
	dec, _ := fieldcrypt.DecryptObject(logger, c.cipher, key, *auth, paths)
	return &dec
}

func (c *Coordinator) prepareRunDirs(outputDir string) error {
	for _, dir := range []string{
		outputDir,
		filepath.Join(outputDir, "images"),
		filepath.Join(outputDir, "db_exports"),
		filepath.Join(outputDir, "api_exports"),
	} {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %q: %w", dir, err)
		}
	}
	return nil
}

// collectArtifacts gathers whatever the run left behind. Lookup errors are
// logged and skipped; an artifact scan must never turn a finished run into
// a failure.
func (c *Coordinator) collectArtifacts(logger logrus.FieldLogger, outputDir string) evidence.Artifacts {
	var arts evidence.Artifacts

	videos, err := fsext.FindFiles(c.fs, outputDir, ".webm", ".mp4")
	if err != nil {
		logger.WithError(err).Warn("scanning for video failed")
	} else if len(videos) > 0 {
		arts.VideoPath = videos[0]
	}

	arts.ImagePaths = c.findArtifacts(logger, filepath.Join(outputDir, "images"), ".png", ".jpg", ".jpeg")
	arts.DatabaseExportPaths = c.findArtifacts(logger, filepath.Join(outputDir, "db_exports"), ".csv", ".json")
	arts.APIExportPaths = c.findArtifacts(logger, filepath.Join(outputDir, "api_exports"), ".json")
	return arts
}

func (c *Coordinator) findArtifacts(logger logrus.FieldLogger, dir string, exts ...string) []string {
	found, err := fsext.FindFiles(c.fs, dir, exts...)
	if err != nil {
		logger.WithError(err).WithField("dir", dir).Warn("scanning for artifacts failed")
		return nil
	}
	return found
}

// failAndReport folds err into a failed result and, when saving, marks the
// evidence Failed best-effort. A secondary update error is only logged.
func (c *Coordinator) failAndReport(
	ctx context.Context, save bool, evidenceID string, err error, start time.Time,
) TestExecutionResult {
	if save {
		if uerr := c.updater.UpdateStatus(ctx, evidenceID, evidence.StatusFailed); uerr != nil {
			c.logger.WithError(uerr).Warn("marking evidence failed did not go through")
		}
	}
	return failedResult(err, start)
}

func (c *Coordinator) cleanup(scriptPath, outputDir string, tempFiles []string) {
	if scriptPath != "" {
		if err := c.fs.Remove(scriptPath); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			c.logger.WithError(err).WithField("path", scriptPath).Warn("could not remove script")
		}
	}
	if outputDir != "" {
		if err := c.fs.RemoveAll(outputDir); err != nil {
			c.logger.WithError(err).WithField("path", outputDir).Warn("could not remove run output")
		}
	}
	c.removeAll(tempFiles)
}

func (c *Coordinator) removeAll(paths []string) {
	for _, p := range paths {
		if err := c.fs.Remove(p); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			c.logger.WithError(err).WithField("path", p).Warn("could not remove temp file")
		}
	}
}

func failedResult(err error, start time.Time) TestExecutionResult {
	return TestExecutionResult{
		Success:       false,
		Status:        evidence.StatusFailed,
		Logs:          err.Error(),
		ExecutionTime: time.Since(start),
	}
}

func resolvePlaceholders(code, outputDir string) string {
	return strings.NewReplacer(
		codegen.ScreenshotDirToken, filepath.ToSlash(filepath.Join(outputDir, "images")),
		codegen.DBExportDirToken, filepath.ToSlash(filepath.Join(outputDir, "db_exports")),
		codegen.APIExportDirToken, filepath.ToSlash(filepath.Join(outputDir, "api_exports")),
	).Replace(code)
}

func combineLogs(out RunOutput) string {
	var sb strings.Builder
	if s := strings.TrimSpace(out.Stdout); s != "" {
		sb.WriteString(s)
	}
	if s := strings.TrimSpace(out.Stderr); s != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(s)
	}
	return sb.String()
}
