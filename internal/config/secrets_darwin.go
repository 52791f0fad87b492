//go:build darwin

package config

import "os/exec"

func secretHint(account string) string {
	return " or the login Keychain (service: " + secretService + ", account: " + account + ")"
}

// readSecret looks account up in the login Keychain.
func readSecret(account string) ([]byte, error) {
	return exec.Command("security", "find-generic-password", "-s", secretService, "-a", account, "-w").Output()
}
