package application

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	archive "github.com/maziggy/bambusy/internal/archive/domain"
	"github.com/maziggy/bambusy/internal/eventing"
	"github.com/maziggy/bambusy/internal/observability/metrics"
)

const defaultStepTimeout = 2 * time.Minute

// Repository persists archive records.
type Repository interface {
	Create(ctx context.Context, record archive.PrintArchive, source []byte) error
	UpdateStatus(ctx context.Context, id, status string, completedAt time.Time) error
	UpdateEnergy(ctx context.Context, id string, kwh, cost float64) error
	FindUnresolved(ctx context.Context, deviceID, filename string) (*archive.PrintArchive, error)
	ListByDevice(ctx context.Context, deviceID string) ([]archive.PrintArchive, error)
	AddPhoto(ctx context.Context, id, photoURL string) error
}

// RemoteEntry is one file or directory on the printer's storage.
type RemoteEntry struct {
	Name      string
	SizeBytes int64
	IsDir     bool
}

// FileFetcher reads files from a printer's storage. DownloadFile
// returns nil bytes without an error when the path does not exist.
type FileFetcher interface {
	DownloadFile(ctx context.Context, path string) ([]byte, error)
	ListFiles(ctx context.Context, dir string) ([]RemoteEntry, error)
	Close() error
}

// FetcherFactory opens a storage connection to one printer.
type FetcherFactory func(host, accessCode string) (FileFetcher, error)

// EnergyMeter reads the lifetime energy counter of the smart plug a
// printer is attached to. The bool is false when the device has no
// meter configured.
type EnergyMeter interface {
	TotalKWh(ctx context.Context, deviceID string) (float64, bool, error)
}

// PhotoCapturer grabs a snapshot of the finished print and returns a
// reference to the stored image.
type PhotoCapturer interface {
	CapturePhoto(ctx context.Context, deviceID string) (string, error)
}

// DeviceInfo is what the pipeline needs to know about a printer.
type DeviceInfo struct {
	Host        string
	AccessCode  string
	AutoArchive bool
}

// DeviceDirectory resolves device ids to their connection details.
type DeviceDirectory interface {
	Lookup(deviceID string) (DeviceInfo, bool)
}

// Pipeline reacts to print lifecycle events: on start it captures the
// job file into the archive, on completion it closes the record out and
// attaches energy usage and a photo. Every follow-up step is isolated:
// a failing step is logged and the rest of the pipeline still runs.
type Pipeline struct {
	repo        Repository
	index       *ActivePrintIndex
	devices     DeviceDirectory
	openFetcher FetcherFactory
	meter       EnergyMeter
	photos      PhotoCapturer
	bus         *eventing.Bus
	logger      zerolog.Logger
	pricePerKWh float64
	stepTimeout time.Duration

	mu        sync.Mutex
	baselines map[string]float64
}

// PipelineOption customises pipeline construction.
type PipelineOption func(*Pipeline)

// WithEnergyMeter attaches a smart plug meter for energy accounting.
func WithEnergyMeter(meter EnergyMeter, pricePerKWh float64) PipelineOption {
	return func(p *Pipeline) {
		p.meter = meter
		p.pricePerKWh = pricePerKWh
	}
}

// WithPhotoCapturer attaches a camera for finish photos.
func WithPhotoCapturer(photos PhotoCapturer) PipelineOption {
	return func(p *Pipeline) {
		p.photos = photos
	}
}

// WithStepTimeout overrides the per-event processing deadline.
func WithStepTimeout(timeout time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if timeout > 0 {
			p.stepTimeout = timeout
		}
	}
}

// NewPipeline constructs an archive pipeline.
func NewPipeline(repo Repository, index *ActivePrintIndex, devices DeviceDirectory, openFetcher FetcherFactory, bus *eventing.Bus, logger zerolog.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if repo == nil {
		return nil, errors.New("application: repository is required")
	}
	if index == nil {
		return nil, errors.New("application: active print index is required")
	}
	if devices == nil {
		return nil, errors.New("application: device directory is required")
	}
	if openFetcher == nil {
		return nil, errors.New("application: fetcher factory is required")
	}
	if bus == nil {
		return nil, errors.New("application: bus is required")
	}
	p := &Pipeline{
		repo:        repo,
		index:       index,
		devices:     devices,
		openFetcher: openFetcher,
		bus:         bus,
		logger:      logger,
		stepTimeout: defaultStepTimeout,
		baselines:   make(map[string]float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Bind subscribes the pipeline to lifecycle events. Handlers run in
// their own goroutine with a deadline so a slow printer never stalls
// the bus.
func (p *Pipeline) Bind(bus *eventing.Bus) {
	bus.SubscribePrintStarted(func(_ context.Context, event eventing.PrintStarted) error {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), p.stepTimeout)
			defer cancel()
			p.HandlePrintStarted(ctx, event)
		}()
		return nil
	})
	bus.SubscribePrintCompleted(func(_ context.Context, event eventing.PrintCompleted) error {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), p.stepTimeout)
			defer cancel()
			p.HandlePrintCompleted(ctx, event)
		}()
		return nil
	})
}

// HandlePrintStarted captures the job file from the printer and opens
// an archive record in "printing" state.
func (p *Pipeline) HandlePrintStarted(ctx context.Context, event eventing.PrintStarted) {
	started := time.Now()
	logger := p.logger.With().Str("device_id", event.DeviceID).Str("filename", event.Filename).Logger()

	info, ok := p.devices.Lookup(event.DeviceID)
	if !ok {
		logger.Warn().Msg("print started on unknown device")
		return
	}
	if !info.AutoArchive {
		logger.Debug().Msg("auto archive disabled, skipping capture")
		return
	}

	fetcher, err := p.openFetcher(info.Host, info.AccessCode)
	if err != nil {
		metrics.ObservePipeline("start", "error", time.Since(started))
		logger.Error().Err(err).Msg("open printer storage failed")
		return
	}
	defer fetcher.Close()

	name, data := p.locateFile(ctx, fetcher, event.Filename, event.SubtaskName, logger)
	if data == nil {
		metrics.IncArchiveDownload("miss")
		metrics.ObservePipeline("start", "miss", time.Since(started))
		logger.Warn().Msg("print file not found on printer")
		return
	}
	metrics.IncArchiveDownload("hit")

	record := archive.PrintArchive{
		ID:        uuid.NewString(),
		DeviceID:  event.DeviceID,
		Filename:  name,
		PrintName: printName(event.Filename, event.SubtaskName),
		Status:    archive.StatusPrinting,
		SizeBytes: int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}
	if err := p.repo.Create(ctx, record, data); err != nil {
		metrics.ObservePipeline("start", "error", time.Since(started))
		logger.Error().Err(err).Msg("create archive record failed")
		return
	}

	p.index.Link(event.DeviceID, name, record.ID)
	if event.Filename != "" && event.Filename != name {
		p.index.Link(event.DeviceID, event.Filename, record.ID)
	}
	if event.SubtaskName != "" {
		p.index.Link(event.DeviceID, event.SubtaskName+".3mf", record.ID)
	}

	p.captureBaseline(ctx, event.DeviceID, record.ID, logger)

	err = p.bus.PublishArchiveCreated(ctx, eventing.ArchiveCreated{
		DeviceID:  event.DeviceID,
		ArchiveID: record.ID,
		Filename:  name,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		logger.Error().Err(err).Msg("publish archive created failed")
	}
	metrics.ObservePipeline("start", "ok", time.Since(started))
	logger.Info().Str("archive_id", record.ID).Int64("size_bytes", record.SizeBytes).Msg("print file archived")
}

// locateFile tries the candidate names across the known storage paths,
// then falls back to scanning the cache directory.
func (p *Pipeline) locateFile(ctx context.Context, fetcher FileFetcher, reportedName, subtaskName string, logger zerolog.Logger) (string, []byte) {
	for _, name := range CandidateNames(reportedName, subtaskName) {
		for _, path := range RemotePaths(name) {
			data, err := fetcher.DownloadFile(ctx, path)
			if err != nil {
				logger.Debug().Err(err).Str("path", path).Msg("download attempt failed")
				continue
			}
			if data != nil {
				return name, data
			}
		}
	}

	entries, err := fetcher.ListFiles(ctx, "/cache")
	if err != nil {
		logger.Debug().Err(err).Msg("cache listing failed")
		return "", nil
	}
	term := SearchTerm(reportedName, subtaskName)
	if term == "" {
		return "", nil
	}
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		lower := strings.ToLower(entry.Name)
		if !strings.HasSuffix(lower, ".3mf") || !strings.Contains(lower, term) {
			continue
		}
		data, err := fetcher.DownloadFile(ctx, "/cache/"+entry.Name)
		if err != nil {
			logger.Debug().Err(err).Str("name", entry.Name).Msg("cache download failed")
			continue
		}
		if data != nil {
			return entry.Name, data
		}
	}
	return "", nil
}

func (p *Pipeline) captureBaseline(ctx context.Context, deviceID, archiveID string, logger zerolog.Logger) {
	if p.meter == nil {
		return
	}
	total, ok, err := p.meter.TotalKWh(ctx, deviceID)
	if err != nil {
		logger.Warn().Err(err).Msg("energy baseline read failed")
		return
	}
	if !ok {
		return
	}
	p.mu.Lock()
	p.baselines[archiveID] = total
	p.mu.Unlock()
}

// HandlePrintCompleted closes the archive record that matches the
// finished job and attaches energy usage and a finish photo.
func (p *Pipeline) HandlePrintCompleted(ctx context.Context, event eventing.PrintCompleted) {
	started := time.Now()
	logger := p.logger.With().Str("device_id", event.DeviceID).Str("filename", event.Filename).Logger()

	archiveID, ok := p.index.Resolve(event.DeviceID, event.Filename)
	if !ok {
		record, err := p.repo.FindUnresolved(ctx, event.DeviceID, event.Filename)
		if err != nil {
			metrics.ObservePipeline("complete", "error", time.Since(started))
			logger.Error().Err(err).Msg("unresolved archive lookup failed")
			return
		}
		if record == nil {
			metrics.ObservePipeline("complete", "miss", time.Since(started))
			logger.Warn().Msg("no archive record for completed print")
			return
		}
		archiveID = record.ID
	}

	status := archive.StatusCompleted
	if event.Status == "failed" {
		status = archive.StatusFailed
	}
	completedAt := time.Now().UTC()
	if err := p.repo.UpdateStatus(ctx, archiveID, status, completedAt); err != nil {
		logger.Error().Err(err).Str("archive_id", archiveID).Msg("update archive status failed")
	}

	p.settleEnergy(ctx, archiveID, event.DeviceID, logger)

	if p.photos != nil && status == archive.StatusCompleted {
		photoURL, err := p.photos.CapturePhoto(ctx, event.DeviceID)
		if err != nil {
			logger.Warn().Err(err).Msg("finish photo capture failed")
		} else if photoURL != "" {
			if err := p.repo.AddPhoto(ctx, archiveID, photoURL); err != nil {
				logger.Warn().Err(err).Msg("attach finish photo failed")
			}
		}
	}

	err := p.bus.PublishArchiveUpdated(ctx, eventing.ArchiveUpdated{
		DeviceID:  event.DeviceID,
		ArchiveID: archiveID,
		Status:    status,
		UpdatedAt: completedAt,
	})
	if err != nil {
		logger.Error().Err(err).Msg("publish archive updated failed")
	}
	metrics.ObservePipeline("complete", "ok", time.Since(started))
	logger.Info().Str("archive_id", archiveID).Str("status", status).Msg("archive record closed")
}

func (p *Pipeline) settleEnergy(ctx context.Context, archiveID, deviceID string, logger zerolog.Logger) {
	if p.meter == nil {
		return
	}
	p.mu.Lock()
	baseline, ok := p.baselines[archiveID]
	delete(p.baselines, archiveID)
	p.mu.Unlock()
	if !ok {
		return
	}

	total, has, err := p.meter.TotalKWh(ctx, deviceID)
	if err != nil {
		logger.Warn().Err(err).Msg("energy reading failed")
		return
	}
	if !has {
		return
	}

	kwh := roundTo(total-baseline, 4)
	if kwh < 0 {
		kwh = 0
	}
	cost := roundTo(kwh*p.pricePerKWh, 2)
	if err := p.repo.UpdateEnergy(ctx, archiveID, kwh, cost); err != nil {
		logger.Warn().Err(err).Str("archive_id", archiveID).Msg("update archive energy failed")
	}
}

func printName(reportedName, subtaskName string) string {
	if subtaskName != "" {
		return subtaskName
	}
	return reportedName
}

func roundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
