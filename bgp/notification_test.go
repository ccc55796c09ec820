/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package bgp

import (
	"bytes"
	"errors"
	"testing"
)

func TestNotificationEncodeDecodeRoundTrip(t *testing.T) {
	n := Notification{Code: 6, Subcode: CeaseAdminReset, Data: []byte("maintenance")}
	decoded, err := DecodeNotification(n.Encode())
	if err != nil {
		t.Fatalf("DecodeNotification: %v", err)
	}
	if decoded.Code != n.Code || decoded.Subcode != n.Subcode || !bytes.Equal(decoded.Data, n.Data) {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
}

func TestNotificationFromErrorUsesNotifyErrorCode(t *testing.T) {
	n := NotificationFromError(notify(3, 3, "missing ORIGIN"))
	if n.Code != 3 || n.Subcode != 3 {
		t.Fatalf("expected code/subcode from the NotifyError, got %d/%d", n.Code, n.Subcode)
	}
}

func TestNotificationFromErrorFallsBackToCease(t *testing.T) {
	n := NotificationFromError(errors.New("connection reset"))
	if n.Code != 6 || n.Subcode != 0 {
		t.Fatalf("expected a generic Cease for a non-NotifyError, got %d/%d", n.Code, n.Subcode)
	}
}

func TestShutdownCommunicationRoundTrip(t *testing.T) {
	msg := "peer decommissioned"
	n := Notification{Code: 6, Subcode: CeaseAdminShutdown, Data: append([]byte{byte(len(msg))}, msg...)}
	got, ok := n.ShutdownCommunication()
	if !ok || got != msg {
		t.Fatalf("expected shutdown communication %q, got %q (ok=%v)", msg, got, ok)
	}
}

func TestShutdownCommunicationAbsentForOtherCodes(t *testing.T) {
	n := Notification{Code: 4, Subcode: 0}
	if _, ok := n.ShutdownCommunication(); ok {
		t.Fatalf("expected no shutdown communication for a HoldTimerExpired NOTIFICATION")
	}
}

func TestDescribeNamesCeaseAdminShutdownWithMessage(t *testing.T) {
	msg := "decommissioning"
	n := Notification{Code: 6, Subcode: CeaseAdminShutdown, Data: append([]byte{byte(len(msg))}, msg...)}
	want := "Cease / Administrative Shutdown (decommissioning)"
	if got := n.Describe(); got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
}

func TestDescribeFallsBackToNumbersForUnnamedCodes(t *testing.T) {
	n := Notification{Code: 3, Subcode: 4}
	want := "UPDATE Message Error / subcode 4"
	if got := n.Describe(); got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
}
