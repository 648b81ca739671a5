package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cmsdl/internal/downloader"
	"cmsdl/pkg/catalog"
	"cmsdl/pkg/config"
	"cmsdl/pkg/course"
	errs "cmsdl/pkg/errors"
	"cmsdl/pkg/logger"
	"cmsdl/pkg/portal"
	"cmsdl/pkg/storage"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// ErrAuthAttemptsExhausted is returned when every login attempt was rejected
var ErrAuthAttemptsExhausted = errors.New("authentication failed: no attempts left")

// State is a stage of a pipeline run
type State int

const (
	StateInit State = iota
	StateAuthenticating
	StateFailed
	StateAuthenticated
	StateCatalogReady
	StateFilesListed
	StateDirsReady
	StateDownloading
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAuthenticating:
		return "authenticating"
	case StateFailed:
		return "failed"
	case StateAuthenticated:
		return "authenticated"
	case StateCatalogReady:
		return "catalog_ready"
	case StateFilesListed:
		return "files_listed"
	case StateDirsReady:
		return "dirs_ready"
	case StateDownloading:
		return "downloading"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Report summarises one run
type Report struct {
	RunID         string
	Courses       int
	CoursesFailed int
	Files         int
	Queued        int
	Downloaded    int
	Skipped       int
	Failed        int
	Bytes         int64
	Duration      time.Duration
}

// Pipeline authenticates, discovers courses and files, and downloads
// whatever is not on disk yet.
type Pipeline struct {
	cfg      *config.Config
	creds    CredentialSource
	storage  *storage.Manager
	progress ProgressFactory
	runID    string
	logger   logger.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithProgress reports download progress to reporters built by f
func WithProgress(f ProgressFactory) Option {
	return func(p *Pipeline) {
		p.progress = f
	}
}

// New creates a pipeline. The downloads directory is created if needed.
func New(cfg *config.Config, creds CredentialSource, log logger.Logger, opts ...Option) (*Pipeline, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	store, err := storage.NewManager(cfg.Output.DownloadsDir)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	p := &Pipeline{
		cfg:     cfg,
		creds:   creds,
		storage: store,
		runID:   runID,
		logger:  log.WithField("run_id", runID),
		state:   StateInit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunID identifies this pipeline in log output
func (p *Pipeline) RunID() string {
	return p.runID
}

// State returns the current stage
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	prev := p.state
	p.state = s
	p.mu.Unlock()

	p.logger.WithFields(map[string]interface{}{
		"from": prev.String(),
		"to":   s.String(),
	}).Debug("Pipeline state changed")
}

// Run executes one full sync. Individual course and file failures are
// logged and counted in the report without failing the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: p.runID}
	defer func() { report.Duration = time.Since(start) }()

	logger.LogComponentStart(p.logger, "pipeline", map[string]interface{}{
		"host":          p.cfg.Portal.Host,
		"downloads_dir": p.cfg.Output.DownloadsDir,
		"workers":       p.cfg.Download.ConcurrentDownloads,
	})

	session, err := p.authenticate(ctx)
	if err != nil {
		return report, err
	}
	p.setState(StateAuthenticated)

	endpoints := session.Endpoints()
	cache := catalog.NewCache(p.cfg.Cache.CoursesFile, endpoints.HomeURL(), session,
		func(doc *goquery.Document) ([]catalog.Entry, error) {
			return course.ParseCatalog(doc, p.cfg.Portal.CoursesTableID, endpoints)
		}, p.logger)

	cat, err := cache.LoadOrBuild(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load course catalog: %w", err)
	}
	if cat.Len() == 0 {
		p.logger.Warn("No courses found on the portal")
	}
	p.setState(StateCatalogReady)

	courses, err := p.listFiles(ctx, session, cat, report)
	if err != nil {
		return report, err
	}
	p.setState(StateFilesListed)

	for _, c := range courses {
		for _, f := range c.Files {
			if err := p.storage.EnsureDir(f.Dir); err != nil {
				return report, err
			}
		}
	}
	p.setState(StateDirsReady)

	jobs := p.workSet(courses)
	report.Queued = len(jobs)
	if len(jobs) == 0 {
		p.logger.Warn("No new files found.")
		p.setState(StateDone)
		return report, nil
	}

	p.logger.WithField("files", len(jobs)).Info("Downloading new files")
	p.setState(StateDownloading)
	err = p.download(ctx, session, jobs, report)
	p.setState(StateDone)

	p.logger.WithFields(map[string]interface{}{
		"downloaded": report.Downloaded,
		"failed":     report.Failed,
		"bytes":      report.Bytes,
	}).Info("Download finished")
	return report, err
}

// authenticate runs the bounded login loop. Rejected credentials are
// removed from the store before asking again.
func (p *Pipeline) authenticate(ctx context.Context) (*portal.Session, error) {
	maxAttempts := p.cfg.Credentials.MaxAuthAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p.setState(StateAuthenticating)

		creds, fresh, err := p.creds.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to collect credentials: %w", err)
		}

		session, err := portal.NewSession(p.cfg, creds, p.logger)
		if err != nil {
			return nil, err
		}

		err = session.Authenticate(ctx)
		if err == nil {
			if fresh {
				if cerr := p.creds.Commit(creds); cerr != nil {
					p.logger.WithError(cerr).Warn("Failed to save credentials")
				}
			}
			return session, nil
		}
		if !errs.IsType(err, errs.ErrorTypeAuth) {
			return nil, err
		}

		p.setState(StateFailed)
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		}).Error("Authentication failed")

		if ierr := p.creds.Invalidate(); ierr != nil {
			return nil, fmt.Errorf("failed to remove rejected credentials: %w", ierr)
		}
	}

	return nil, ErrAuthAttemptsExhausted
}

// listFiles scrapes every course page in catalog order. Courses whose page
// cannot be fetched or parsed are skipped.
func (p *Pipeline) listFiles(ctx context.Context, session *portal.Session, cat *catalog.Catalog, report *Report) ([]*course.Course, error) {
	endpoints := session.Endpoints()

	var courses []*course.Course
	for _, entry := range cat.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := course.NewCourse(entry.Name, entry.URL)
		report.Courses++
		log := p.logger.WithField("course", c.DisplayName)

		doc, err := session.Document(ctx, c.URL)
		if err == nil {
			c.Files, err = course.ParseFiles(doc, c, endpoints, p.cfg.Output.DownloadsDir)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errs.IsType(err, errs.ErrorTypeNetwork) {
				return nil, err
			}
			report.CoursesFailed++
			log.WithError(err).Error("Failed to scrape course")
			continue
		}

		report.Files += len(c.Files)
		log.WithField("files", len(c.Files)).Info("Scraped course")
		for _, f := range c.Files {
			log.WithFields(map[string]interface{}{
				"week":        f.Week,
				"file":        f.FileName(),
				"description": f.Description,
			}).Debug("Found file")
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// workSet selects files that are not on disk and have an allowed extension.
// When two files map to the same path the later one replaces the earlier.
func (p *Pipeline) workSet(courses []*course.Course) []downloader.DownloadJob {
	index := make(map[string]int)
	var jobs []downloader.DownloadJob

	for _, c := range courses {
		for _, f := range c.Files {
			if p.storage.Exists(f.Path) {
				continue
			}
			if !p.cfg.ExtensionAllowed(f.Extension) {
				p.logger.WithFields(map[string]interface{}{
					"path":      f.Path,
					"extension": f.Extension,
				}).Debug("Skipping file with excluded extension")
				continue
			}

			job := downloader.DownloadJob{File: f, Course: c.DisplayName}
			if i, ok := index[f.Path]; ok {
				jobs[i] = job
				continue
			}
			index[f.Path] = len(jobs)
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func (p *Pipeline) download(ctx context.Context, session *portal.Session, jobs []downloader.DownloadJob, report *Report) error {
	var reporter downloader.ProgressReporter
	if p.progress != nil {
		reporter = p.progress(len(jobs))
	}

	pool := downloader.NewWorkerPool(p.cfg.Download.ConcurrentDownloads, session, p.storage, reporter, p.logger)
	pool.Start(ctx)

	go func() {
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	for result := range pool.Results() {
		switch {
		case result.Skipped:
			report.Skipped++
		case result.Success:
			report.Downloaded++
			report.Bytes += result.Size
			logger.LogDownload(p.logger, result.Job.Course, result.Job.File.Path, result.Size, nil)
		default:
			report.Failed++
			logger.LogDownload(p.logger, result.Job.Course, result.Job.File.Path, result.Size, result.Error)
		}
	}

	return ctx.Err()
}
