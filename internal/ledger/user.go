package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"
)

// DeleteUserData erases every record of user in one transaction: categories,
// transactions, positions and lots. confirm must repeat the user id.
func (s *Service) DeleteUserData(ctx context.Context, user, confirm domain.UserID) (storage.Purged, error) {
	if user <= 0 || confirm != user {
		slog.Warn("user data deletion not confirmed", "user_id", user, "confirm", confirm)
		return storage.Purged{}, fmt.Errorf("%w: confirmation does not match the user id", domain.ErrInvalidInput)
	}

	var purged storage.Purged
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		var err error
		purged, err = tx.DeleteAll(ctx)
		return err
	})
	if err != nil {
		return storage.Purged{}, fmt.Errorf("delete user data: %w", err)
	}

	s.invalidate(user)
	slog.Info("user data deleted", "user_id", user,
		"transactions", purged.Transactions, "categories", purged.Categories,
		"positions", purged.Positions, "lots", purged.Lots)
	return purged, nil
}
