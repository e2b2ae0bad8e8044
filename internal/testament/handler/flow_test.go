package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "testament/internal/jwt_token"
	"testament/internal/platform/middleware"
	"testament/internal/testament/models"
	"testament/internal/testament/service"
	"testament/internal/testament/store"
	"testament/internal/treasury"
	id "testament/pkg/domain"
	"testament/pkg/testutil"
)

// TestTestamentLifecycle drives the full stack through the router with real
// signed tokens: deploy, bequeath, death and payout.
func TestTestamentLifecycle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	funds := treasury.NewInMemory()
	svc := service.New(store.NewInMemory(), funds, service.WithLogger(logger))
	jwtService := jwttoken.NewJWTService("test-signing-key", "testament", "testament-api")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	New(svc, logger, jwttoken.NewJWTServiceAdapter(jwtService)).Register(router)

	owner, doctor, heir := id.AccountID(uuid.New()), id.AccountID(uuid.New()), id.AccountID(uuid.New())
	token := func(account id.AccountID) string {
		signed, err := jwtService.GenerateCallerToken(account, time.Minute)
		require.NoError(t, err)
		return signed
	}
	do := func(method, path string, body any, caller id.AccountID) *http.Response {
		req := testutil.NewJSONRequest(t, method, path, body)
		if !caller.IsNil() {
			testutil.WithBearer(req, token(caller))
		}
		return testutil.DoRequest(router, req).Result()
	}

	var base string
	testutil.Given(t, "a deployed testament", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/testaments", DeployRequest{Doctor: doctor})
		rr := testutil.DoRequest(router, testutil.WithBearer(req, token(owner)))
		require.Equal(t, http.StatusCreated, rr.Code)
		base = rr.Header().Get("Location")
		require.NotEmpty(t, base)
	})
	require.NotEmpty(t, base)

	testutil.When(t, "the owner bequeaths while alive", func(t *testing.T) {
		resp := do(http.MethodPost, base+"/bequests", BequeathRequest{Beneficiary: heir, Amount: 1000}, owner)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		testutil.Then(t, "the heir is credited and the owner debited", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodGet, base+"/bequests/"+heir.String(), nil)
			rr := testutil.DoRequest(router, req)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, int64(1000), testutil.UnmarshalResponse[BalanceResponse](t, rr).Amount)
			assert.Equal(t, int64(-1000), funds.Position(owner))
		})

		testutil.Then(t, "the heir cannot withdraw yet", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, base+"/withdrawal", nil)
			rr := testutil.DoRequest(router, testutil.WithBearer(req, token(heir)))
			testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_state", models.ReasonStillAlive)
		})
	})

	testutil.When(t, "someone other than the doctor declares death", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, base+"/death", nil)
		rr := testutil.DoRequest(router, testutil.WithBearer(req, token(owner)))

		testutil.Then(t, "it is forbidden", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden", models.ReasonNotDoctor)
		})
	})

	testutil.When(t, "the doctor declares death", func(t *testing.T) {
		resp := do(http.MethodPost, base+"/death", nil, doctor)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		testutil.Then(t, "the owner can no longer bequeath", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, base+"/bequests", BequeathRequest{Beneficiary: heir, Amount: 1})
			rr := testutil.DoRequest(router, testutil.WithBearer(req, token(owner)))
			testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_state", models.ReasonOwnerDead)
		})
	})

	testutil.When(t, "the heir withdraws", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, base+"/withdrawal", nil)
		rr := testutil.DoRequest(router, testutil.WithBearer(req, token(heir)))

		testutil.Then(t, "the full bequest is paid once", func(t *testing.T) {
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, int64(1000), testutil.UnmarshalResponse[WithdrawalResponse](t, rr).Amount)
			assert.Equal(t, int64(1000), funds.Position(heir))

			again := testutil.NewJSONRequest(t, http.MethodPost, base+"/withdrawal", nil)
			rr2 := testutil.DoRequest(router, testutil.WithBearer(again, token(heir)))
			testutil.AssertStatusAndError(t, rr2, http.StatusUnprocessableEntity, "insufficient_claim", models.ReasonNothingForCaller)
		})

		testutil.Then(t, "the snapshot shows a deceased owner with nothing outstanding", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, base, nil))
			require.Equal(t, http.StatusOK, rr.Code)
			snap := testutil.UnmarshalResponse[TestamentResponse](t, rr)
			assert.False(t, snap.Alive)
			assert.Zero(t, snap.Total)
		})

		testutil.Then(t, "the event history is in order", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, base+"/events", nil))
			require.Equal(t, http.StatusOK, rr.Code)
			var kinds []string
			for _, ev := range testutil.UnmarshalResponse[EventsResponse](t, rr).Events {
				kinds = append(kinds, ev.Kind)
			}
			assert.Equal(t, []string{"bequeathed", "died", "withdrew"}, kinds)
		})
	})

	testutil.When(t, "a mutation arrives without a token", func(t *testing.T) {
		resp := do(http.MethodPost, base+"/death", nil, id.AccountID{})

		testutil.Then(t, "it is rejected before reaching the service", func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	})
}
