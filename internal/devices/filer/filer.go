// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package filer is the file-manager device, rooted at a single base
// directory. Every path in a command is resolved relative to the base and
// rejected if it escapes it.
package filer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/logging"
)

// Device is the file-manager device.
type Device struct {
	base   string
	engine *authz.Engine

	// uploads buffers multi-chunk writes keyed by user+path until Commit.
	uploadsMu sync.Mutex
	uploads   map[string][]byte
}

// New builds a filer over base. The directory must already exist.
func New(base string, engine *authz.Engine) (*Device, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("filer base: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filer base %s is not a directory", base)
	}
	return &Device{
		base:    filepath.Clean(base),
		engine:  engine,
		uploads: make(map[string][]byte),
	}, nil
}

var _ device.Device = (*Device)(nil)

// resolve maps a request path under the base directory, rejecting
// anything that escapes it.
func (d *Device) resolve(reqPath string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(reqPath))
	full := filepath.Join(d.base, cleaned)
	if full != d.base && !strings.HasPrefix(full, d.base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes the share", command.ErrInvalidInput)
	}
	return full, nil
}

// entryView describes one directory entry in a listing.
type entryView struct {
	Name  string `json:"name"`
	Dir   bool   `json:"dir"`
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"`
}

// writeRequest is the payload of writefile and movefile.
type writeRequest struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	To      string `json:"to,omitempty"`
}

// ReadData serves list, stat, and readfile; the payload is the target path.
func (d *Device) ReadData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "filer_read"); err != nil {
		return nil, err
	}
	full, err := d.resolve(env.Payload)
	if err != nil {
		return nil, err
	}

	switch env.Command {
	case "list":
		entries, err := os.ReadDir(full)
		if err != nil {
			return nil, pathErr("list", err)
		}
		views := make([]entryView, 0, len(entries))
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			views = append(views, entryView{
				Name:  e.Name(),
				Dir:   e.IsDir(),
				Size:  info.Size(),
				MTime: info.ModTime().Unix(),
			})
		}
		return marshal(views)

	case "stat":
		info, err := os.Stat(full)
		if err != nil {
			return nil, pathErr("stat", err)
		}
		return marshal(entryView{
			Name:  info.Name(),
			Dir:   info.IsDir(),
			Size:  info.Size(),
			MTime: info.ModTime().Unix(),
		})

	case "readfile":
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, pathErr("readfile", err)
		}
		return device.Result(data), nil

	default:
		return nil, fmt.Errorf("%w: unknown command %q", command.ErrDeviceError, env.Command)
	}
}

// ReadStatus reports how many entries sit at the top of the share.
func (d *Device) ReadStatus(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupStatus); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.base)
	if err != nil {
		return nil, pathErr("status", err)
	}
	return marshal(map[string]int{"entries": len(entries)})
}

// WriteData serves createdir, writefile, and movefile.
func (d *Device) WriteData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupFilerWrite); err != nil {
		return nil, err
	}

	switch env.Command {
	case "createdir":
		full, err := d.resolve(env.Payload)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(full, 0o755); err != nil {
			return nil, pathErr("createdir", err)
		}

	case "writefile":
		var req writeRequest
		if err := json.Unmarshal([]byte(env.Payload), &req); err != nil {
			return nil, fmt.Errorf("%w: malformed payload: %v", command.ErrInvalidInput, err)
		}
		full, err := d.resolve(req.Path)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
			return nil, pathErr("writefile", err)
		}

	case "movefile":
		var req writeRequest
		if err := json.Unmarshal([]byte(env.Payload), &req); err != nil {
			return nil, fmt.Errorf("%w: malformed payload: %v", command.ErrInvalidInput, err)
		}
		from, err := d.resolve(req.Path)
		if err != nil {
			return nil, err
		}
		to, err := d.resolve(req.To)
		if err != nil {
			return nil, err
		}
		if err := os.Rename(from, to); err != nil {
			return nil, pathErr("movefile", err)
		}

	default:
		return nil, fmt.Errorf("%w: unknown command %q", command.ErrDeviceError, env.Command)
	}
	return device.Result("ok"), nil
}

// RequestQuery is not part of the filer surface.
func (d *Device) RequestQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: filer has no request operation", command.ErrDeviceError)
}

// ConfirmQuery is not part of the filer surface.
func (d *Device) ConfirmQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: filer has no confirm operation", command.ErrDeviceError)
}

// DismissQuery is not part of the filer surface.
func (d *Device) DismissQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: filer has no dismiss operation", command.ErrDeviceError)
}

// Append buffers an upload chunk for user+path. Nothing reaches disk until
// Commit.
func (d *Device) Append(user, reqPath string, chunk []byte) error {
	if _, err := d.resolve(reqPath); err != nil {
		return err
	}
	d.uploadsMu.Lock()
	defer d.uploadsMu.Unlock()
	key := user + "\x00" + reqPath
	d.uploads[key] = append(d.uploads[key], chunk...)
	return nil
}

// Commit writes the buffered upload to disk and drops the buffer. A commit
// with no prior Append writes an empty file.
func (d *Device) Commit(user, reqPath string) error {
	full, err := d.resolve(reqPath)
	if err != nil {
		return err
	}

	d.uploadsMu.Lock()
	key := user + "\x00" + reqPath
	buf := d.uploads[key]
	delete(d.uploads, key)
	d.uploadsMu.Unlock()

	if err := os.WriteFile(full, buf, 0o644); err != nil {
		return pathErr("commit", err)
	}
	logging.Debug().Str("user", user).Str("path", reqPath).Int("bytes", len(buf)).
		Msg("Upload committed")
	return nil
}

// Abort drops a buffered upload without writing it.
func (d *Device) Abort(user, reqPath string) {
	d.uploadsMu.Lock()
	delete(d.uploads, user+"\x00"+reqPath)
	d.uploadsMu.Unlock()
}

// Open returns a readable file under the share, for the download endpoint.
func (d *Device) Open(reqPath string) (*os.File, error) {
	full, err := d.resolve(reqPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, pathErr("open", err)
	}
	return f, nil
}

func pathErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", command.ErrDeviceError, op, err)
}

func marshal(v any) (device.Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", command.ErrDeviceError, err)
	}
	return device.Result(raw), nil
}
