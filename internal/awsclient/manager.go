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
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const roleSessionName = "img-shuffle-catalog"

// Manager holds the base AWS config used to build catalog clients.
// Assumed-role credentials are cached per role ARN.
type Manager struct {
	baseCfg aws.Config
	tracer  trace.Tracer

	mu        sync.Mutex
	stsClient *sts.Client
	roles     map[string]aws.CredentialsProvider
}

// NewManager loads the default AWS config chain (env, shared files, IMDS).
func NewManager(ctx context.Context) (*Manager, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	return &Manager{
		baseCfg: cfg,
		tracer:  otel.Tracer("github.com/Z3NTL3/img-shuffle/internal/awsclient"),
		roles:   make(map[string]aws.CredentialsProvider),
	}, nil
}

// credentials returns the base credentials, or a cached assume-role provider
// when roleARN is set. The STS client is only built for the first role.
func (m *Manager) credentials(roleARN string) aws.CredentialsProvider {
	if roleARN == "" {
		return m.baseCfg.Credentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if provider, ok := m.roles[roleARN]; ok {
		return provider
	}
	if m.stsClient == nil {
		m.stsClient = sts.NewFromConfig(m.baseCfg)
	}
	provider := aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(m.stsClient, roleARN,
		func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = roleSessionName
		}))
	m.roles[roleARN] = provider
	return provider
}
