package memberrepo

import (
	"testing"

	"github.com/Huaoe/ElurcFleet/internal/adapters/contracttest"
	"github.com/Huaoe/ElurcFleet/internal/adapters/sqlite"
	memberrepoport "github.com/Huaoe/ElurcFleet/internal/ports/out/memberrepo"
)

func TestContract_SQLiteIdentityRepo(t *testing.T) {
	contracttest.RunIdentityRepo(t, func(t *testing.T) (memberrepoport.Repository, func()) {
		t.Helper()
		db, err := sqlite.Open(":memory:")
		if err != nil {
			t.Fatalf("sqlite.Open err=%v", err)
		}
		return NewRepo(db), func() { _ = sqlite.Close(db) }
	})
}
