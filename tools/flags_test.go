package tools

import (
	"testing"

	"go.viam.com/test"
)

func TestParseFlagsForCommandExtractArea(t *testing.T) {
	config := Config{Workers: 2, DecodeAttempts: 6, MaxLevel: 9}
	flags := ParseFlagsForCommandExtractArea([]string{
		"-i", "a/metadata.json", "--input", "b,c",
		"--area", "minmax([0,0],[1,1])",
		"-o", "out.las",
		"--max-level", "3",
		"-a", "rgb,intensity",
	}, config)

	test.That(t, *flags.Inputs, test.ShouldResemble, []string{"a/metadata.json", "b", "c"})
	test.That(t, *flags.Area, test.ShouldEqual, "minmax([0,0],[1,1])")
	test.That(t, *flags.Output, test.ShouldEqual, "out.las")
	test.That(t, *flags.MaxLevel, test.ShouldEqual, 3)
	test.That(t, *flags.MinLevel, test.ShouldEqual, 0)
	test.That(t, *flags.Workers, test.ShouldEqual, 2)
	test.That(t, *flags.DecodeAttempts, test.ShouldEqual, 6)
	test.That(t, *flags.OutputAttributes, test.ShouldEqual, "rgb,intensity")
	test.That(t, *flags.GetCandidates, test.ShouldBeFalse)
}

func TestParseFlagsForCommandExtractProfile(t *testing.T) {
	flags := ParseFlagsForCommandExtractProfile([]string{
		"-i", "cloud", "--coordinates", "{0,0},{10,0}", "--width", "2.5", "-z", "-1",
	}, Config{MaxLevel: 100})

	test.That(t, *flags.Coordinates, test.ShouldEqual, "{0,0},{10,0}")
	test.That(t, *flags.Width, test.ShouldEqual, 2.5)
	test.That(t, *flags.ZOffset, test.ShouldEqual, -1.0)
	test.That(t, *flags.MaxLevel, test.ShouldEqual, 100)
}

func TestParseFlagsForCommandCandidates(t *testing.T) {
	flags := ParseFlagsForCommandCandidates([]string{"-i", "cloud", "--area", "{1,0,0,0,0,1,0,0,0,0,1,0,0,0,0,1}"}, Config{})
	test.That(t, *flags.GetCandidates, test.ShouldBeTrue)
	test.That(t, *flags.Inputs, test.ShouldResemble, []string{"cloud"})
}
