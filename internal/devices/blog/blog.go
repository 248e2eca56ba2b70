// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package blog is the blog device. Published posts live in a redis list,
// newest first; drafts staged with Request live in a redis hash keyed by
// author until published.
package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
)

const (
	postsKey  = "webdeck:blog:posts"
	draftsKey = "webdeck:blog:drafts"

	// listLimit caps one ReadData response.
	listLimit = 100
)

// Post is one published entry or staged draft.
type Post struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// postInput is the payload of Write and Request.
type postInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Device is the blog device.
type Device struct {
	rdb    *redis.Client
	engine *authz.Engine
}

// New builds the blog device over a redis client.
func New(rdb *redis.Client, engine *authz.Engine) *Device {
	return &Device{rdb: rdb, engine: engine}
}

var _ device.Device = (*Device)(nil)

// ReadData lists published posts, newest first.
func (d *Device) ReadData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "blogdev_read"); err != nil {
		return nil, err
	}

	raws, err := d.rdb.LRange(ctx, postsKey, 0, listLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list posts: %v", command.ErrStoreUnavailable, err)
	}
	posts := make([]Post, 0, len(raws))
	for _, raw := range raws {
		var p Post
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			// Skip entries written by an incompatible version.
			continue
		}
		posts = append(posts, p)
	}
	return marshal(posts)
}

// ReadStatus reports the number of published posts.
func (d *Device) ReadStatus(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupStatus); err != nil {
		return nil, err
	}
	n, err := d.rdb.LLen(ctx, postsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: count posts: %v", command.ErrStoreUnavailable, err)
	}
	return marshal(map[string]int64{"posts": n})
}

// WriteData publishes a post. With an empty payload it publishes the
// caller's staged draft instead.
func (d *Device) WriteData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "blogdev_write"); err != nil {
		return nil, err
	}

	var in postInput
	if env.Payload == "" {
		draft, err := d.takeDraft(ctx, env.Username)
		if err != nil {
			return nil, err
		}
		in = postInput{Title: draft.Title, Body: draft.Body}
	} else if err := json.Unmarshal([]byte(env.Payload), &in); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", command.ErrInvalidInput, err)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: post needs a title", command.ErrInvalidInput)
	}

	post := Post{
		ID:      uuid.NewString(),
		Author:  env.Username,
		Title:   in.Title,
		Body:    in.Body,
		Created: time.Now().UTC(),
	}
	raw, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("%w: encode post: %v", command.ErrDeviceError, err)
	}
	if err := d.rdb.LPush(ctx, postsKey, raw).Err(); err != nil {
		return nil, fmt.Errorf("%w: publish post: %v", command.ErrStoreUnavailable, err)
	}
	return device.Result(post.ID), nil
}

// RequestQuery stages a draft for the caller, replacing any existing one.
func (d *Device) RequestQuery(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "blogdev_request"); err != nil {
		return nil, err
	}

	var in postInput
	if err := json.Unmarshal([]byte(env.Payload), &in); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", command.ErrInvalidInput, err)
	}
	draft := Post{
		ID:      uuid.NewString(),
		Author:  env.Username,
		Title:   in.Title,
		Body:    in.Body,
		Created: time.Now().UTC(),
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("%w: encode draft: %v", command.ErrDeviceError, err)
	}
	if err := d.rdb.HSet(ctx, draftsKey, env.Username, raw).Err(); err != nil {
		return nil, fmt.Errorf("%w: stage draft: %v", command.ErrStoreUnavailable, err)
	}
	return device.Result(draft.ID), nil
}

// ConfirmQuery is not part of the blog surface; publication goes through
// Write.
func (d *Device) ConfirmQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: blog has no confirm operation", command.ErrDeviceError)
}

// DismissQuery is not part of the blog surface.
func (d *Device) DismissQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: blog has no dismiss operation", command.ErrDeviceError)
}

// takeDraft removes and returns the caller's staged draft.
func (d *Device) takeDraft(ctx context.Context, author string) (*Post, error) {
	raw, err := d.rdb.HGet(ctx, draftsKey, author).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no staged draft", command.ErrDeviceError)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read draft: %v", command.ErrStoreUnavailable, err)
	}
	var draft Post
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, fmt.Errorf("%w: decode draft: %v", command.ErrDeviceError, err)
	}
	if err := d.rdb.HDel(ctx, draftsKey, author).Err(); err != nil {
		return nil, fmt.Errorf("%w: drop draft: %v", command.ErrStoreUnavailable, err)
	}
	return &draft, nil
}

func marshal(v any) (device.Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", command.ErrDeviceError, err)
	}
	return device.Result(raw), nil
}
