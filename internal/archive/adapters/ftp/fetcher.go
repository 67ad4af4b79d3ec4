package ftp

import (
	"context"

	"github.com/maziggy/bambusy/internal/archive/application"
	"github.com/maziggy/bambusy/internal/ftpadapter"
)

// Fetcher adapts a printer storage connection to the pipeline's
// FileFetcher interface.
type Fetcher struct {
	client *ftpadapter.Client
}

// NewFetcherFactory returns a factory dialing printers on demand.
func NewFetcherFactory(ctx context.Context) application.FetcherFactory {
	return func(host, accessCode string) (application.FileFetcher, error) {
		client, err := ftpadapter.Dial(ctx, host, accessCode)
		if err != nil {
			return nil, err
		}
		return &Fetcher{client: client}, nil
	}
}

// DownloadFile reads a file, reporting a miss as nil bytes.
func (f *Fetcher) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	return f.client.DownloadFile(ctx, path)
}

// ListFiles lists a directory on the printer.
func (f *Fetcher) ListFiles(ctx context.Context, dir string) ([]application.RemoteEntry, error) {
	entries, err := f.client.ListFiles(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make([]application.RemoteEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, application.RemoteEntry{
			Name:      entry.Name,
			SizeBytes: entry.SizeBytes,
			IsDir:     entry.IsDir,
		})
	}
	return out, nil
}

// Close terminates the connection.
func (f *Fetcher) Close() error {
	return f.client.Close()
}
