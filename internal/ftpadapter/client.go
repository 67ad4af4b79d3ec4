package ftpadapter

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"
)

// Bambu printers expose their SD card over implicit-TLS FTP with the
// same access code used for MQTT. The certificate is self-signed.
const (
	ftpPort     = 990
	ftpUser     = "bblp"
	dialTimeout = 10 * time.Second
)

// Client is a connection to one printer's storage.
type Client struct {
	conn *ftp.ServerConn
}

// Dial opens and authenticates a storage connection.
func Dial(ctx context.Context, host, accessCode string) (*Client, error) {
	if host == "" {
		return nil, errors.New("ftpadapter: empty host")
	}
	conn, err := ftp.Dial(
		fmt.Sprintf("%s:%d", host, ftpPort),
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(dialTimeout),
		ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}),
	)
	if err != nil {
		return nil, fmt.Errorf("ftpadapter: dial %s: %w", host, err)
	}
	if err := conn.Login(ftpUser, accessCode); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("ftpadapter: login %s: %w", host, err)
	}
	return &Client{conn: conn}, nil
}

// Entry is one file or directory on the printer.
type Entry struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	IsDir      bool      `json:"is_dir"`
	ModifiedAt time.Time `json:"modified_at"`
}

// StorageInfo summarises the printer's storage usage.
type StorageInfo struct {
	UsedBytes int64 `json:"used_bytes"`
	FileCount int   `json:"file_count"`
}

// ListFiles lists the entries of a directory.
func (c *Client) ListFiles(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.conn.List(dir)
	if err != nil {
		return nil, fmt.Errorf("ftpadapter: list %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		if item.Name == "." || item.Name == ".." {
			continue
		}
		entries = append(entries, Entry{
			Name:       item.Name,
			SizeBytes:  int64(item.Size),
			IsDir:      item.Type == ftp.EntryTypeFolder,
			ModifiedAt: item.Time,
		})
	}
	return entries, nil
}

// DownloadFile reads a file into memory. A missing path returns nil
// bytes without an error so callers can probe candidate locations.
func (c *Client) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := c.conn.Retr(path)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ftpadapter: retr %s: %w", path, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("ftpadapter: read %s: %w", path, err)
	}
	return data, nil
}

// DeleteFile removes a file from the printer.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.Delete(path); err != nil {
		return fmt.Errorf("ftpadapter: delete %s: %w", path, err)
	}
	return nil
}

// Storage sums the files in the root and cache directories. The
// printer does not report capacity, so only usage is available.
func (c *Client) Storage(ctx context.Context) (StorageInfo, error) {
	var info StorageInfo
	for _, dir := range []string{"/", "/cache"} {
		entries, err := c.ListFiles(ctx, dir)
		if err != nil {
			return StorageInfo{}, err
		}
		for _, entry := range entries {
			if entry.IsDir {
				continue
			}
			info.UsedBytes += entry.SizeBytes
			info.FileCount++
		}
	}
	return info, nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.conn.Quit()
}

func isNotFound(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code == ftp.StatusFileUnavailable
	}
	return false
}
