package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fortiblox/x1-stakepool/pkg/metrics"
	"github.com/fortiblox/x1-stakepool/pkg/programs/stakepool"
	"github.com/fortiblox/x1-stakepool/pkg/programs/token"
	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Handlers translates relay requests into engine instructions.
type Handlers struct {
	engine      *runtime.Engine
	poolAddress types.Pubkey

	stakeRequests   *metrics.Counter
	unstakeRequests *metrics.Counter
	requestErrors   *metrics.Counter
	vaultBalance    *metrics.Gauge
}

// NewHandlers creates handlers bound to the pool derived from admin.
func NewHandlers(engine *runtime.Engine, admin types.Pubkey) (*Handlers, error) {
	poolAddress, _, err := stakepool.DerivePoolAddress(admin)
	if err != nil {
		return nil, fmt.Errorf("derive pool address: %w", err)
	}
	return &Handlers{
		engine:      engine,
		poolAddress: poolAddress,
	}, nil
}

// RegisterMetrics wires request counters into the given registry.
func (h *Handlers) RegisterMetrics(registry *metrics.Registry) {
	h.stakeRequests = registry.Counter("relay_stake_requests_total", "Total stake requests received")
	h.unstakeRequests = registry.Counter("relay_unstake_requests_total", "Total unstake requests received")
	h.requestErrors = registry.Counter("relay_request_errors_total", "Total requests that returned an error")
	h.vaultBalance = registry.Gauge("relay_staking_vault_balance", "Current balance of the pool's staking vault")
}

// PoolAddress returns the pool account address the relay serves.
func (h *Handlers) PoolAddress() types.Pubkey {
	return h.poolAddress
}

func (h *Handlers) countError() {
	if h.requestErrors != nil {
		h.requestErrors.Inc()
	}
}

// loadPool reads and decodes the pool account.
func (h *Handlers) loadPool() (*stakepool.StakePool, error) {
	acc, err := h.engine.DB().GetAccount(h.poolAddress)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("pool account %s not found", h.poolAddress)
	}
	return stakepool.DeserializeStakePool(acc.Data)
}

// statusFor maps instruction errors to HTTP status codes. The error
// message itself is passed through to the client untouched.
func statusFor(err error) int {
	switch {
	case errors.Is(err, stakepool.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, stakepool.ErrAuthorizationFailure):
		return http.StatusForbidden
	case errors.Is(err, stakepool.ErrInvalidAccountOwnership),
		errors.Is(err, stakepool.ErrInvalidAccountRelationship):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// HandleStake processes POST /stake.
func (h *Handlers) HandleStake(w http.ResponseWriter, r *http.Request) {
	if h.stakeRequests != nil {
		h.stakeRequests.Inc()
	}

	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.countError()
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	h.processTransfer(w, req.UserPublicKey, req.Amount, false)
}

// HandleUnstake processes POST /unstake.
func (h *Handlers) HandleUnstake(w http.ResponseWriter, r *http.Request) {
	if h.unstakeRequests != nil {
		h.unstakeRequests.Inc()
	}

	var req UnstakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.countError()
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	h.processTransfer(w, req.UserPublicKey, req.Amount, true)
}

// processTransfer builds and executes a stake or unstake instruction for
// the given user.
func (h *Handlers) processTransfer(w http.ResponseWriter, userKey string, amount uint64, unstake bool) {
	user, err := types.PubkeyFromBase58(userKey)
	if err != nil {
		h.countError()
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid user_public_key: %w", err))
		return
	}

	pool, err := h.loadPool()
	if err != nil {
		h.countError()
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	position, _, err := stakepool.DerivePositionAddress(h.poolAddress, user)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	userToken, _, err := token.DeriveTokenAddress(user, pool.StakingMint)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var inst *types.Instruction
	if unstake {
		inst = types.NewInstruction(
			types.StakePoolProgramID,
			(&stakepool.UnstakeInstruction{Amount: amount}).Encode(),
			types.SignerMeta(user),
			types.WritableMeta(userToken, false),
			types.WritableMeta(pool.StakingVault, false),
			types.WritableMeta(position, false),
			types.Meta(h.poolAddress),
		)
	} else {
		inst = types.NewInstruction(
			types.StakePoolProgramID,
			(&stakepool.StakeInstruction{Amount: amount}).Encode(),
			types.SignerMeta(user),
			types.WritableMeta(userToken, false),
			types.WritableMeta(pool.StakingVault, false),
			types.WritableMeta(position, false),
		)
	}

	result, err := h.engine.Process(inst)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if result.Err != nil {
		h.countError()
		writeError(w, statusFor(result.Err), result.Err)
		return
	}

	staked := uint64(0)
	if acc, err := h.engine.DB().GetAccount(position); err == nil && acc != nil {
		if pos, err := stakepool.DeserializeUserPosition(acc.Data); err == nil {
			staked = pos.StakedAmount
		}
	}

	if h.vaultBalance != nil {
		if acc, err := h.engine.DB().GetAccount(pool.StakingVault); err == nil && acc != nil {
			if amount, err := token.Balance(acc.Data); err == nil {
				h.vaultBalance.SetUint64(amount)
			}
		}
	}

	writeJSON(w, http.StatusOK, TransactionResponse{
		Slot:          uint64(result.Slot),
		UnixTimestamp: result.UnixTimestamp,
		StakedAmount:  staked,
	})
}

// HandleBalance processes GET /balance/{pubkey}. The balance reported is
// the user's account for the pool's staking mint; a missing account reads
// as zero.
func (h *Handlers) HandleBalance(w http.ResponseWriter, r *http.Request) {
	user, err := pathPubkey(r.URL.Path, "/balance/")
	if err != nil {
		h.countError()
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pool, err := h.loadPool()
	if err != nil {
		h.countError()
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	userToken, _, err := token.DeriveTokenAddress(user, pool.StakingMint)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := BalanceResponse{TokenAccount: userToken.String()}
	acc, err := h.engine.DB().GetAccount(userToken)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if acc != nil {
		amount, err := token.Balance(acc.Data)
		if err != nil {
			h.countError()
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Amount = amount
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandlePosition processes GET /position/{pubkey}.
func (h *Handlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	user, err := pathPubkey(r.URL.Path, "/position/")
	if err != nil {
		h.countError()
		writeError(w, http.StatusBadRequest, err)
		return
	}

	position, _, err := stakepool.DerivePositionAddress(h.poolAddress, user)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	acc, err := h.engine.DB().GetAccount(position)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if acc == nil {
		h.countError()
		writeError(w, http.StatusNotFound, fmt.Errorf("position %s not found", position))
		return
	}

	pos, err := stakepool.DeserializeUserPosition(acc.Data)
	if err != nil {
		h.countError()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, PositionResponse{
		Address:            position.String(),
		User:               pos.User.String(),
		Pool:               pos.Pool.String(),
		StakedAmount:       pos.StakedAmount,
		LastStakeTimestamp: pos.LastStakeTimestamp,
	})
}

// HandlePool processes GET /pool.
func (h *Handlers) HandlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.loadPool()
	if err != nil {
		h.countError()
		writeError(w, http.StatusNotFound, err)
		return
	}

	resp := PoolResponse{
		Address:      h.poolAddress.String(),
		StakingMint:  pool.StakingMint.String(),
		StakingVault: pool.StakingVault.String(),
		RewardMint:   pool.RewardMint.String(),
		RewardVault:  pool.RewardVault.String(),
		Admin:        pool.Admin.String(),
		Bump:         pool.Bump,
	}

	if acc, err := h.engine.DB().GetAccount(pool.StakingVault); err == nil && acc != nil {
		if amount, err := token.Balance(acc.Data); err == nil {
			resp.VaultBalance = amount
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// pathPubkey extracts and decodes the pubkey path segment after prefix.
func pathPubkey(path, prefix string) (types.Pubkey, error) {
	raw := strings.TrimPrefix(path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return types.Pubkey{}, fmt.Errorf("missing pubkey in path %q", path)
	}
	pk, err := types.PubkeyFromBase58(raw)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("invalid pubkey %q: %w", raw, err)
	}
	return pk, nil
}
