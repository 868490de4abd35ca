package sdcardfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupportedIn(t *testing.T) {
	cases := []struct {
		desc string
		data string
		want bool
	}{
		{"empty", "", false},
		{"typical-without", "nodev\tsysfs\nnodev\ttmpfs\n\text4\n\tvfat\n", false},
		{"typical-with", "nodev\tsysfs\nnodev\tsdcardfs\n\text4\n", true},
		{"plain-entry", "\tsdcardfs\n", true},
		{"prefix-does-not-match", "nodev\tsdcardfs2\n", false},
		{"substring-does-not-match", "nodev\tnotsdcardfs\n", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.want, supportedIn([]byte(tc.data)))
		})
	}
}

func TestDriverArgs(t *testing.T) {
	require.Equal(t,
		[]string{"-u", "1023", "-g", "1023", "-m", "-w", "-G", "-i", "-o", "/data/media", "emulated"},
		driverArgs("/data/media", "emulated"))
}
