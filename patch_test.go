package discipline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	zero := 0
	var none *int
	tests := []struct {
		name  string
		build func(p *patch)
		want  string
	}{
		{"empty", func(p *patch) {}, `{}`},
		{"ordered", func(p *patch) {
			p.Set("status", "archived")
			p.Set("market", "US")
		}, `{"status":"archived","market":"US"}`},
		{"zero values", func(p *patch) {
			p.Set("position_qty", 0)
			p.SetIf("currency", "")
			p.SetIf("avg_entry_price", none)
			p.SetIf("quantity", &zero)
			p.SetIf("market", "HK")
		}, `{"position_qty":0,"quantity":0,"market":"HK"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p patch
			tt.build(&p)
			got, err := p.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	t.Run("sticky error", func(t *testing.T) {
		var p patch
		p.Set("bad", func() {})
		p.Set("market", "US")
		assert.Equal(t, 0, p.Len())
		_, err := p.MarshalJSON()
		assert.Error(t, err)
	})
}
