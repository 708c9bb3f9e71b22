package payment

import (
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	retryWaitMin = time.Millisecond
	retryWaitMax = 5 * time.Millisecond
	os.Exit(m.Run())
}
