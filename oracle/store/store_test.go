package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	store *NonceStore
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.store = NewMemStore()
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreTestSuite) TestUnknownByDefault() {
	status, err := s.store.Status([]byte("withdraw_2_1"))
	s.Require().NoError(err)
	s.Equal(StatusUnknown, status)
	s.False(status.Done())
}

func (s *StoreTestSuite) TestSetStatus() {
	key := []byte("withdraw_2_abc123")
	before := time.Now().Add(-time.Second)

	s.Require().NoError(s.store.SetStatus(key, StatusProcessing))
	status, updated, err := s.store.Get(key)
	s.Require().NoError(err)
	s.Equal(StatusProcessing, status)
	s.True(updated.After(before))

	s.Require().NoError(s.store.SetStatus(key, StatusBroadcasted))
	status, err = s.store.Status(key)
	s.Require().NoError(err)
	s.True(status.Done())
	s.Equal("broadcasted", status.String())
}

func (s *StoreTestSuite) TestKeysAreIndependent() {
	s.Require().NoError(s.store.SetStatus([]byte("withdraw_2_1"), StatusBroadcasted))

	status, err := s.store.Status([]byte("withdraw_3_1"))
	s.Require().NoError(err)
	s.Equal(StatusUnknown, status)
}

func (s *StoreTestSuite) TestPending() {
	s.Require().NoError(s.store.SetStatus([]byte("withdraw_2_1"), StatusProcessing))
	s.Require().NoError(s.store.SetStatus([]byte("withdraw_2_2"), StatusBroadcasted))
	s.Require().NoError(s.store.SetStatus([]byte("withdraw_4_3"), StatusProcessing))

	keys, err := s.store.Pending()
	s.Require().NoError(err)
	s.ElementsMatch([][]byte{[]byte("withdraw_2_1"), []byte("withdraw_4_3")}, keys)

	s.Require().NoError(s.store.Delete([]byte("withdraw_2_1")))
	keys, err = s.store.Pending()
	s.Require().NoError(err)
	s.Len(keys, 1)
}

func (s *StoreTestSuite) TestPing() {
	s.NoError(s.store.Ping())
}

func TestOpenGoLevelDBPersists(t *testing.T) {
	dir := t.TempDir()
	key := []byte("withdraw_2_99")

	st, err := Open("goleveldb", dir)
	require.NoError(t, err)
	require.NoError(t, st.SetStatus(key, StatusBroadcasted))
	require.NoError(t, st.Close())

	st, err = Open("goleveldb", dir)
	require.NoError(t, err)
	defer st.Close()

	status, err := st.Status(key)
	require.NoError(t, err)
	require.Equal(t, StatusBroadcasted, status)
}
