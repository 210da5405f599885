package invitation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/database/dbtest"
	"github.com/agencia-vs/acreditaciones/internal/invitation"
)

func TestInvitationRepository(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := invitation.NewRepository(pool)
	ctx := context.Background()

	var tenantID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO tenants (slug, name) VALUES ('inv-club', 'Club') RETURNING id`).Scan(&tenantID))

	inv := &invitation.Invitation{
		TenantID:  tenantID,
		Email:     " New@Club.cl ",
		Role:      "staff",
		TokenHash: invitation.HashToken("inv_raw"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, inv))
	assert.Equal(t, "new@club.cl", inv.Email)

	got, err := repo.GetByTokenHash(ctx, invitation.HashToken("inv_raw"))
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Nil(t, got.AcceptedAt)

	_, err = repo.GetByTokenHash(ctx, invitation.HashToken("other"))
	assert.ErrorIs(t, err, invitation.ErrInvitationNotFound)

	require.NoError(t, repo.MarkAccepted(ctx, inv.ID))
	assert.ErrorIs(t, repo.MarkAccepted(ctx, inv.ID), invitation.ErrInvitationUsed)
	require.NoError(t, repo.Reopen(ctx, inv.ID))
	require.NoError(t, repo.MarkAccepted(ctx, inv.ID))

	list, err := repo.List(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].AcceptedAt)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.New(), inv.ID), invitation.ErrInvitationNotFound)
	require.NoError(t, repo.Delete(ctx, tenantID, inv.ID))
}
