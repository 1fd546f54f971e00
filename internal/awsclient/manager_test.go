// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package awsclient

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("AWS_REGION", "us-east-2")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	mgr, err := NewManager(context.Background())
	require.NoError(t, err)
	return mgr
}

func TestGetS3AppliesOptions(t *testing.T) {
	mgr := newTestManager(t)

	client, err := mgr.GetS3(context.Background(),
		WithRegion("eu-west-1"),
		WithEndpoint("http://minio:9000"),
		WithPathStyle())
	require.NoError(t, err)
	require.NotNil(t, client.Tracer)

	opts := client.Client.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestGetS3DefaultsToBaseRegion(t *testing.T) {
	mgr := newTestManager(t)

	client, err := mgr.GetS3(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", client.Client.Options().Region)
	assert.False(t, client.Client.Options().UsePathStyle)
}

func TestCredentialsCachedPerRole(t *testing.T) {
	mgr := newTestManager(t)

	base := mgr.credentials("")
	assert.Same(t, mgr.baseCfg.Credentials, base)

	roleARN := "arn:aws:iam::123456789012:role/images"
	first := mgr.credentials(roleARN)
	second := mgr.credentials(roleARN)
	assert.Same(t, first, second)
	assert.NotSame(t, base, first)

	other := mgr.credentials("arn:aws:iam::123456789012:role/thumbnails")
	assert.NotSame(t, first, other)
	assert.Len(t, mgr.roles, 2)
}

func TestSTSClientBuiltOnlyForRoles(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.GetS3(context.Background(), WithRegion("eu-west-1"))
	require.NoError(t, err)
	assert.Nil(t, mgr.stsClient)
	assert.Empty(t, mgr.roles)

	_, err = mgr.GetS3(context.Background(), WithRole("arn:aws:iam::123456789012:role/images"))
	require.NoError(t, err)
	assert.NotNil(t, mgr.stsClient)
	assert.Len(t, mgr.roles, 1)
}
