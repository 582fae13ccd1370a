package profilerepo

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/Huaoe/ElurcFleet/internal/adapters/contracttest"
	pgmemberrepo "github.com/Huaoe/ElurcFleet/internal/adapters/postgres/memberrepo"
	"github.com/Huaoe/ElurcFleet/internal/adapters/postgres/testutil"
	"github.com/Huaoe/ElurcFleet/internal/domain"
	memberrepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
	profilerepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/profilerepo"
)

func TestContract_PostgresProfileRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunProfileRepo(t, func(t *testing.T) (memberrepoport.Repository, profilerepoport.Repository, func()) {
		t.Helper()
		return pgmemberrepo.NewRepo(pool), NewRepo(pool), nil
	})
}

func TestPostgresProfileRepo_IdentityDeleteCascades(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunProfileCascade(t,
		func(t *testing.T) (memberrepoport.Repository, profilerepoport.Repository, func()) {
			return pgmemberrepo.NewRepo(pool), NewRepo(pool), nil
		},
		func(ctx context.Context, id domain.MemberID) error {
			_, err := pool.Exec(ctx, `DELETE FROM member_identities WHERE id = $1`, uuid.MustParse(string(id)))
			return err
		},
	)
}
