package fspath

import (
	"testing"

	ie "github.com/sahib/fsh/errors"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tcs := []struct {
		in, scheme, authority, path string
	}{
		{"script-dir/", "", "", "script-dir"},
		{"/a//b/../c", "", "", "/a/c"},
		{".", "", "", "."},
		{"mem:///", "mem", "", "/"},
		{"mem://", "mem", "", "/"},
		{"webhdfs://nn:9870/user/alice", "webhdfs", "nn:9870", "/user/alice"},
		{"HDFS://nn/x/", "hdfs", "nn", "/x"},
	}

	for _, tc := range tcs {
		t.Run(tc.in, func(t *testing.T) {
			p, err := Parse(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.scheme, p.Scheme())
			require.Equal(t, tc.authority, p.Authority())
			require.Equal(t, tc.path, p.Path())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "://x", "mem://[::1/"} {
		_, err := Parse(in)
		require.Equal(t, ie.ErrInvalidPath, err, in)
	}
}

func TestQualify(t *testing.T) {
	wd := MustParse("/user/alice")

	p := MustParse("script-dir/").Qualify("mem", "", wd)
	require.Equal(t, "mem:///user/alice/script-dir", p.String())
	require.True(t, p.IsQualified())

	p = MustParse("/tmp/../etc").Qualify("webhdfs", "nn:9870", wd)
	require.Equal(t, "webhdfs://nn:9870/etc", p.String())

	// A path with its own scheme keeps it:
	p = MustParse("file:///tmp/x").Qualify("mem", "", wd)
	require.Equal(t, "file:///tmp/x", p.String())

	p = MustParse("..").Qualify("mem", "", wd)
	require.Equal(t, "mem:///user", p.String())

	// Same scheme without authority takes the default authority:
	p = MustParse("mem:///x").Qualify("mem", "nn:1", wd)
	require.Equal(t, "mem://nn:1/x", p.String())

	p = MustParse("webhdfs:///user/x").Qualify("webhdfs", "nn:9870", wd)
	require.Equal(t, "webhdfs://nn:9870/user/x", p.String())

	p = MustParse("hdfs:///user/x").Qualify("webhdfs", "nn:9870", wd)
	require.Equal(t, "hdfs://nn:9870/user/x", p.String())

	// An explicit authority is kept, even if it differs:
	p = MustParse("mem://other/x").Qualify("mem", "nn:1", wd)
	require.Equal(t, "mem://other/x", p.String())

	p = MustParse("file:///x").Qualify("mem", "nn:1", wd)
	require.Equal(t, "file:///x", p.String())
}

func TestCanonicalScheme(t *testing.T) {
	require.Equal(t, "webhdfs", CanonicalScheme("hdfs"))
	require.Equal(t, "webhdfs", CanonicalScheme("HDFS"))
	require.Equal(t, "mem", CanonicalScheme("mem"))
}

func TestQualifyIsIdempotent(t *testing.T) {
	wd := MustParse("/home/bob")
	other := MustParse("/somewhere/else")

	for _, in := range []string{"a", "/a/b", ".", "../x", "kv:///data", "webhdfs://nn:1/y"} {
		once := MustParse(in).Qualify("kv", "", wd)
		twice := once.Qualify("mem", "other", other)
		require.True(t, once.Equal(twice), in)

		once = MustParse(in).Qualify("webhdfs", "nn:9870", wd)
		twice = once.Qualify("webhdfs", "nn:9870", other)
		require.True(t, once.Equal(twice), in)
	}
}

func TestTreeHelpers(t *testing.T) {
	p := MustParse("mem:///a/b/c.txt")
	require.Equal(t, "c.txt", p.Base())
	require.Equal(t, "mem:///a/b", p.Parent().String())
	require.Equal(t, "mem:///", p.Parent().Parent().Parent().String())
	require.True(t, p.Parent().Parent().Parent().IsRoot())
	require.Equal(t, "mem:///a/b/c.txt/d", p.Join("d").String())
	require.Equal(t, "mem:///a/x", p.Join("..", "..", "x").String())

	require.True(t, p.IsDescendantOf(MustParse("mem:///a")))
	require.True(t, p.IsDescendantOf(MustParse("mem:///")))
	require.False(t, p.IsDescendantOf(p))
	require.False(t, MustParse("mem:///ab").IsDescendantOf(MustParse("mem:///a")))
	require.False(t, p.IsDescendantOf(MustParse("kv:///a")))
}
