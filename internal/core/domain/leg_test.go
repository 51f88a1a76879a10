package domain_test

import (
	"testing"
	"time"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLegs_Topology(t *testing.T) {
	single := &domain.SwapRequest{RequesterID: "req", OwnerID: "own", ProductID: "p1"}
	legs := domain.NewLegs(single)
	assert.Nil(t, legs.B)
	assert.Len(t, legs.All(), 1)
	assert.Equal(t, "own", legs.A.GiverID)
	assert.Equal(t, "req", legs.A.ReceiverID)

	offered := "p2"
	dual := &domain.SwapRequest{RequesterID: "req", OwnerID: "own", ProductID: "p1", OfferedProductID: &offered}
	legs = domain.NewLegs(dual)
	require.NotNil(t, legs.B)
	assert.Equal(t, "req", legs.B.GiverID)
	assert.Equal(t, "own", legs.B.ReceiverID)
	assert.Equal(t, "p2", legs.B.ProductID)
	assert.Nil(t, legs.Get("C"))
}

func TestLegState_SecretLifecycle(t *testing.T) {
	now := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	leg := domain.LegState{Side: domain.LegA, Code: "123456"}
	assert.Equal(t, domain.SecretUnissued, leg.SecretState())

	assert.True(t, leg.MarkScanned(now))
	assert.Equal(t, domain.SecretIssued, leg.SecretState())
	scannedAt := *leg.QRScannedAt

	assert.False(t, leg.MarkScanned(now.Add(time.Hour)))
	assert.Equal(t, scannedAt, *leg.QRScannedAt)

	assert.True(t, leg.CodeMatches("123456"))
	assert.False(t, leg.CodeMatches("12345"))
	assert.False(t, leg.CodeMatches("654321"))

	assert.False(t, leg.CodeExpired(now.Add(24*time.Hour), 24*time.Hour))
	assert.True(t, leg.CodeExpired(now.Add(25*time.Hour), 24*time.Hour))

	leg.MarkReceived([]string{"https://img/1.jpg"}, now.Add(time.Hour))
	assert.Equal(t, domain.SecretUsed, leg.SecretState())
	assert.True(t, leg.ReceivedProduct)
}

func TestSwapLegs_AllReceivedNeedsEveryLeg(t *testing.T) {
	offered := "p2"
	s := &domain.SwapRequest{RequesterID: "req", OwnerID: "own", ProductID: "p1", OfferedProductID: &offered}
	legs := domain.NewLegs(s)
	now := time.Now()

	legs.A.MarkReceived([]string{"a"}, now)
	assert.False(t, legs.AllReceived())
	legs.B.MarkReceived([]string{"b"}, now)
	assert.True(t, legs.AllReceived())
}

func TestSwapRequest_CloneIsDeep(t *testing.T) {
	price := int64(100)
	s := domain.SwapRequest{PendingValorAmount: &price}
	s.Legs = domain.NewLegs(&domain.SwapRequest{OwnerID: "own", RequesterID: "req"})
	c := s.Clone()
	*c.PendingValorAmount = 200
	c.Legs.A.Photos = append(c.Legs.A.Photos, "x")
	assert.Equal(t, int64(100), *s.PendingValorAmount)
	assert.Empty(t, s.Legs.A.Photos)
}
