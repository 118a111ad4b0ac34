package attest

import (
	"fmt"
	"strings"
	"time"

	"github.com/copperhead/attestation-server/pkg/protocol"
)

// Offset from the attestation app version code to its user-facing version:
// version 1 has version code 10, and so on.
const appVersionCodeOffset = 9

// renderTEEEnforced renders the bootloader/TEE verified section of the
// report. The OS version integer encodes MMNNPP, the patch level YYYYMM.
func renderTEEEnforced(verified *Verified, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OS version: %02d.%02d.%02d\n",
		verified.OSVersion/10000, verified.OSVersion/100%100, verified.OSVersion%100)
	fmt.Fprintf(&b, "OS patch level: %d-%02d\n",
		verified.OSPatchLevel/100, verified.OSPatchLevel%100)
	fmt.Fprintf(&b, "Time: %s\n", now.Format(time.RFC1123))
	return b.String()
}

// renderOSEnforced renders the OS-reported section of the report.
func renderOSEnforced(appVersion int, flags protocol.Flags) string {
	var deviceAdminState string
	switch {
	case flags.DeviceAdminNonSystem:
		deviceAdminState = "yes, but only system apps"
	case flags.DeviceAdmin:
		deviceAdminState = "yes, with non-system apps"
	default:
		deviceAdminState = "no"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Auditor app version: %d\n", appVersion-appVersionCodeOffset)
	fmt.Fprintf(&b, "User profile secure: %s\n", yesNo(flags.UserProfileSecure))
	fmt.Fprintf(&b, "Enrolled fingerprints: %s\n", yesNo(flags.EnrolledFingerprints))
	fmt.Fprintf(&b, "Accessibility service(s) enabled: %s\n", yesNo(flags.Accessibility))
	fmt.Fprintf(&b, "Device administrator(s) enabled: %s\n", deviceAdminState)
	fmt.Fprintf(&b, "Android Debug Bridge enabled: %s\n", yesNo(flags.ADBEnabled))
	fmt.Fprintf(&b, "Add users from lock screen: %s\n", yesNo(flags.AddUsersWhenLocked))
	fmt.Fprintf(&b, "Disallow new USB peripherals when locked: %s\n", yesNo(flags.DenyNewUSB))
	return b.String()
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
