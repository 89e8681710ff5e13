package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/billingservice/internal/billing/domain"
	"github.com/jia-app/billingservice/internal/billing/repo/memory"
)

func TestResolveCreatesCustomerOnce(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user_1")
	gw := &fakeGateway{customerID: "cus_1"}
	resolver := NewCustomerResolver(store.Users(), gw)

	id, err := resolver.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerID("cus_1"), id)
	assert.Equal(t, domain.UserID("user_1"), gw.lastCustomerParams.UserID)

	// Second resolution reads the stored id without another external call.
	id, err = resolver.Resolve(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerID("cus_1"), id)
	assert.Equal(t, 1, gw.createCustomerCalls)
}

func TestResolveConcurrent(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user_1")
	gw := &fakeGateway{customerID: "cus_1"}
	resolver := NewCustomerResolver(store.Users(), gw)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Resolve(context.Background(), "user_1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gw.createCustomerCalls)
}

func TestResolveUnknownUser(t *testing.T) {
	store := memory.NewStore()
	resolver := NewCustomerResolver(store.Users(), &fakeGateway{customerID: "cus_1"})

	_, err := resolver.Resolve(context.Background(), "user_missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestResolveEmptyUser(t *testing.T) {
	store := memory.NewStore()
	resolver := NewCustomerResolver(store.Users(), &fakeGateway{})

	_, err := resolver.Resolve(context.Background(), "")
	de := domain.AsDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, domain.ErrCodeInvalidInput, de.Code)
}

func TestResolveGatewayFailure(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user_1")
	gw := &fakeGateway{customerErr: assert.AnError}
	resolver := NewCustomerResolver(store.Users(), gw)

	_, err := resolver.Resolve(context.Background(), "user_1")
	assert.True(t, domain.IsUpstreamFailure(err))

	// Nothing was written; a later attempt can still create the customer.
	user, err := store.Users().GetByID(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Nil(t, user.StripeCustomerID)
}
