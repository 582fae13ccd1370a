package memberrepo

import (
	"testing"

	"github.com/Huaoe/ElurcFleet/internal/adapters/contracttest"
	"github.com/Huaoe/ElurcFleet/internal/adapters/postgres/testutil"
	memberrepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
)

func TestContract_PostgresIdentityRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunIdentityRepo(t, func(t *testing.T) (memberrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
