package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const testGateway = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigTestSuite) TestLoadWritesDefaults() {
	s.Require().NoError(Load(s.dir))

	_, err := os.Stat(filepath.Join(s.dir, FileName))
	s.Require().NoError(err)

	s.Equal(s.dir, Home())
	s.Equal("http://127.0.0.1:8090", MainChainEndpoint())
	s.Equal(30*time.Second, DelayStep())
	s.Equal("goleveldb", StoreBackend())
	s.Equal(filepath.Join(s.dir, "data"), StoreDir())
	s.Equal("oracle:withdraw:events", RelayQueue())
	s.Equal(int64(1_000_000_000), FeeLimit())
	s.Equal("info", LogLevel())

	// defaults lack gateways and keys
	s.Error(Validate())
}

func (s *ConfigTestSuite) TestLoadFile() {
	content := `
[main_chain]
endpoint = "http://main:8090"
gateway = "` + testGateway + `"
requests_per_second = 5.0

[side_chain]
endpoint = "http://side:8090"
gateway = "` + testGateway + `"

[key]
private_key_file = "oracle.key"

[scheduler]
workers = 4
delay_step = "15s"

[store]
backend = "memdb"
dir = "/var/lib/oracled"

[relay]
addr = "redis:6379"
`
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, FileName), []byte(content), 0o600))
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, "oracle.key"), []byte("  abcd\n"), 0o600))

	s.Require().NoError(Load(s.dir))
	s.Require().NoError(Validate())

	s.Equal("http://main:8090", MainChainEndpoint())
	s.Equal(5.0, MainChainRequestsPerSecond())
	s.Equal("http://side:8090", SideChainEndpoint())
	s.Equal(testGateway, SideChainGateway())
	s.Equal(4, Workers())
	s.Equal(15*time.Second, DelayStep())
	s.Equal("/var/lib/oracled", StoreDir())
	s.Equal("redis:6379", RelayAddr())
	s.Equal(256, QueueSize(), "unset keys keep their defaults")
	s.True(HealthEnabled())

	key, err := PrivateKey()
	s.Require().NoError(err)
	s.Equal("abcd", key)
}

func (s *ConfigTestSuite) TestMalformedFile() {
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, FileName), []byte("[main_chain\n"), 0o600))
	s.Error(Load(s.dir))
}

func (s *ConfigTestSuite) TestValidate() {
	testCases := []struct {
		name     string
		mutate   func(c *configData)
		errorMsg string
	}{
		{"valid", func(c *configData) {}, ""},
		{"missing main endpoint", func(c *configData) { c.MainChain.Endpoint = "" }, "main_chain endpoint"},
		{"missing side gateway", func(c *configData) { c.SideChain.Gateway = "" }, "side_chain gateway"},
		{"missing key", func(c *configData) { c.Key.PrivateKey = "" }, "private key"},
		{"bad delay", func(c *configData) { c.Scheduler.DelayStep = "soon" }, "delay_step"},
		{"zero delay", func(c *configData) { c.Scheduler.DelayStep = "0s" }, "delay_step"},
		{"bad backend", func(c *configData) { c.Store.Backend = "rocksdb" }, "store backend"},
		{"bad health interval", func(c *configData) { c.Health.Enabled = true; c.Health.Interval = "x" }, "health interval"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			SetForTesting(s.dir, "http://main", "http://side", testGateway, "abcd")
			mu.Lock()
			tc.mutate(&globalConfig)
			mu.Unlock()

			err := Validate()
			if tc.errorMsg == "" {
				s.Require().NoError(err)
				return
			}
			s.Require().Error(err)
			s.Contains(err.Error(), tc.errorMsg)
		})
	}
}

func (s *ConfigTestSuite) TestEnvironmentOverrides() {
	SetForTesting(s.dir, "http://main", "http://side", testGateway, "from-file")

	s.T().Setenv("ORACLED_KEY_PRIVATE_KEY", "from-env")
	s.T().Setenv("ORACLED_MAIN_CHAIN_ENDPOINT", "http://env-main")

	ApplyOverrides(NewViper())

	key, err := PrivateKey()
	s.Require().NoError(err)
	s.Equal("from-env", key)
	s.Equal("http://env-main", MainChainEndpoint())
	s.Equal("http://side", SideChainEndpoint())
}
