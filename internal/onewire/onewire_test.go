package onewire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlave(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    float64
		wantErr bool
	}{
		{
			name: "valid reading",
			data: "4b 46 7f ff 05 10 e9 : crc=e9 YES\n4b 46 7f ff 05 10 e9 t=23062\n",
			want: 23.062*9.0/5.0 + 32.0,
		},
		{
			name: "negative temperature",
			data: "4b 46 7f ff 05 10 e9 : crc=e9 YES\n4b 46 7f ff 05 10 e9 t=-5000\n",
			want: -5.0*9.0/5.0 + 32.0,
		},
		{
			name:    "crc failure",
			data:    "4b 46 7f ff 05 10 e9 : crc=e9 NO\n4b 46 7f ff 05 10 e9 t=23062\n",
			wantErr: true,
		},
		{
			name:    "missing t= field",
			data:    "4b 46 7f ff 05 10 e9 : crc=e9 YES\n4b 46 7f ff 05 10 e9\n",
			wantErr: true,
		},
		{
			name:    "truncated file",
			data:    "4b 46 7f ff 05 10 e9 : crc=e9 YES",
			wantErr: true,
		},
		{
			name:    "garbage value",
			data:    "x : crc=e9 YES\nx t=abc\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlave(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestReadTempF(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "28-000005e2fdc3")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "w1_slave"),
		[]byte("4b 46 7f ff 05 10 e9 : crc=e9 YES\n4b 46 7f ff 05 10 e9 t=20000\n"),
		0644,
	))

	temp, err := ReadTempF(base, "28-000005e2fdc3")
	require.NoError(t, err)
	assert.InDelta(t, 68.0, temp, 0.001)

	_, err = ReadTempF(base, "28-missing")
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	base := t.TempDir()
	for _, addr := range []string{"28-0000000000b1", "28-0000000000a2", "w1_bus_master1"} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, addr), 0755))
	}

	addrs, err := Discover(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"28-0000000000a2", "28-0000000000b1"}, addrs)
}
