// Package pk11test provides test doubles for code built on pk11.
//
// Counting sits between the façades and a real engine, counting native
// calls and injecting failures. Soft installs it in front of a fresh
// software token for the duration of a test:
//
//	func TestSomething(t *testing.T) {
//		lib := pk11test.Soft(t)
//		// ... exercise pkey or symm ...
//		if lib.Calls("Init") != 1 {
//			t.Fatal("expected one bootstrap")
//		}
//	}
package pk11test
