// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

package redisstore_test

import (
	"context"

	"github.com/asciimmo/asciimmo/internal/authclient"
)

type stubAuth struct{}

func (stubAuth) Login(context.Context, string, string) (authclient.LoginResult, error) {
	return authclient.LoginResult{}, nil
}

func (stubAuth) Register(context.Context, authclient.RegisterRequest) (string, error) {
	return "", nil
}
