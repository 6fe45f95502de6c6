package draft_test

import (
	"testing"

	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/testsupport"
)

func TestMemoryStoreContract(t *testing.T) {
	testsupport.RunStoreContract(t, func(t *testing.T) draft.Store {
		return draft.NewMemoryStore()
	})
}
