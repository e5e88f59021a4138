// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the content-addressed response cache.
//
// Keys are SHA-256 digests of the normalized code, its context and its
// language tag, so two requests for the same code (modulo whitespace) share
// one entry. Entries expire after a TTL (default 7 days) and the least
// recently accessed entry is evicted when the cache is full (default 1000
// entries).
//
// The cache never fails a caller: storage problems are logged and the cache
// behaves as if the entry were absent.
//
// # Usage
//
//	c := cache.New(cache.Options{Store: kv, Logger: logger})
//	_ = c.Load(ctx)
//
//	key := cache.ComputeKey(code, context, "go")
//	if text, ok := c.Get(key); ok {
//	    return text
//	}
//	c.Set(key, explanation)
package cache
