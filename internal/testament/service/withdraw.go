package service

import (
	"context"

	"testament/internal/testament/models"
	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
	"testament/pkg/requestcontext"
)

// Withdraw pays caller everything recorded for them once the owner is deceased.
//
// Ordering: the entry is zeroed, the pooled balance debited and the Withdrew
// notification recorded as held, all in one committed transaction, before the
// payout is issued. No lock is held during the payout, so a withdrawal
// re-entering from inside Treasury.Pay sees a zero entry and fails with
// insufficient_claim. A successful payout releases the notification; a failed
// one restores the entry and discards it in a single transaction.
func (s *Service) Withdraw(ctx context.Context, testamentID id.TestamentID, caller id.AccountID) (_ id.Amount, err error) {
	ctx, finish := s.begin(ctx, opWithdraw, testamentID, caller)
	defer func() { finish(err) }()

	var (
		owed      id.Amount
		notice    models.Event
		committed *models.Testament
	)
	err = s.tx.RunInTx(withTxTestament(ctx, testamentID), func(txCtx context.Context) error {
		t, err := s.load(txCtx, testamentID)
		if err != nil {
			return err
		}
		if _, err := t.CanWithdraw(caller); err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		owed = t.ApplyWithdrawal(caller, now)
		notice = models.Withdrew(testamentID, caller, owed, now)
		notice.Held = true
		if err := s.store.Save(txCtx, t, &notice); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record withdrawal")
		}
		committed = t
		return nil
	})
	if err != nil {
		return id.Zero, err
	}
	s.refreshSnapshot(ctx, committed)

	if err := s.treasury.Pay(ctx, caller, owed); err != nil {
		s.restoreWithdrawal(ctx, testamentID, caller, owed, notice.ID)
		return id.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "payout failed")
	}

	if err := s.store.ReleaseEvent(context.WithoutCancel(ctx), notice.ID); err != nil && s.logger != nil {
		// Funds have left; the withdrawal stands and its notification stays held
		// in the outbox for an operator to release.
		s.logger.ErrorContext(ctx, "CRITICAL: withdrawal notification not released",
			"testament_id", testamentID,
			"event_id", notice.ID,
			"beneficiary", caller,
			"amount", owed.Int64(),
			"error", err,
		)
	}

	s.metrics.AddPaidOut(owed.Int64())
	s.logEvent(ctx, string(models.EventWithdrew),
		"testament_id", testamentID,
		"beneficiary", caller,
		"amount", owed.Int64(),
	)
	return owed, nil
}

// restoreWithdrawal credits a failed payout back to the ledger and discards the
// held notification. Only the same beneficiary's withdrawal touches the entry
// after death, and it sees zero until this commits, so the restore cannot race
// with another payout of it.
func (s *Service) restoreWithdrawal(ctx context.Context, testamentID id.TestamentID, caller id.AccountID, amount id.Amount, noticeID id.EventID) {
	ctx = context.WithoutCancel(ctx)
	var restored *models.Testament
	err := s.tx.RunInTx(withTxTestament(ctx, testamentID), func(txCtx context.Context) error {
		t, err := s.load(txCtx, testamentID)
		if err != nil {
			return err
		}
		t.RestoreWithdrawal(caller, amount, requestcontext.Now(txCtx))
		if err := s.store.Save(txCtx, t); err != nil {
			return err
		}
		if err := s.store.DiscardEvent(txCtx, noticeID); err != nil {
			return err
		}
		restored = t
		return nil
	})
	s.metrics.IncrementPayoutRollbacks()
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "CRITICAL: failed to restore ledger entry after payout failure",
				"testament_id", testamentID,
				"beneficiary", caller,
				"amount", amount.Int64(),
				"error", err,
			)
		}
		return
	}
	s.refreshSnapshot(ctx, restored)
}
