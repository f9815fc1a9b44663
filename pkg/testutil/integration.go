package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ReportSuite provides a context and a scratch output directory for tests
// that drive a reporter end to end
type ReportSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *ReportSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.startTime = time.Now()
}

// SetupTest gives every test its own output directory
func (s *ReportSuite) SetupTest() {
	dir, err := os.MkdirTemp("", "feaout-test-*")
	require.NoError(s.T(), err)
	s.tempDir = dir
}

// TearDownTest removes the output directory
func (s *ReportSuite) TearDownTest() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// TearDownSuite runs after all tests in the suite
func (s *ReportSuite) TearDownSuite() {
	s.cancel()
	s.T().Logf("report suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *ReportSuite) Context() context.Context {
	return s.ctx
}

// Path returns name inside the test's output directory
func (s *ReportSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// ReadFile returns the contents of name inside the output directory
func (s *ReportSuite) ReadFile(name string) string {
	data, err := os.ReadFile(s.Path(name))
	s.Require().NoError(err)
	return string(data)
}
