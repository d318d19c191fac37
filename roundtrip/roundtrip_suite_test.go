package roundtrip_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRoundtrip(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Generator/Tracer Round Trip Suite")
}
