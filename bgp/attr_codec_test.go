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
	"testing"
)

func TestDecodeAttributesRejectsFlagMismatch(t *testing.T) {
	raw := encodeAttribute(Attribute{Code: AttrOrigin, Flags: FlagOptional, Origin: OriginIGP})
	_, _, err := decodeAttributes(raw, false, nil)
	if err == nil {
		t.Fatalf("expected a flag-mismatch error for ORIGIN sent as OPTIONAL")
	}
	ne, ok := err.(*NotifyError)
	if !ok || ne.Code != 3 || ne.Subcode != 4 {
		t.Fatalf("expected NOTIFICATION 3/4, got %v", err)
	}
}

func TestDecodeAttributesDropsUnknownOptionalNonTransitive(t *testing.T) {
	raw := encodeAttribute(Attribute{Code: 200, Flags: FlagOptional, Opaque: []byte{1, 2, 3}})
	attrs, failed, err := decodeAttributes(raw, false, nil)
	if err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no decode failures, got %v", failed)
	}
	if _, ok := attrs[200]; ok {
		t.Fatalf("expected unknown optional non-transitive attribute 200 to be dropped")
	}
}

func TestDecodeAttributesMarksUnknownOptionalTransitiveAsPartial(t *testing.T) {
	raw := encodeAttribute(Attribute{Code: 201, Flags: FlagOptional | FlagTransitive, Opaque: []byte{4, 5, 6}})
	attrs, _, err := decodeAttributes(raw, false, nil)
	if err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	a, ok := attrs[201]
	if !ok {
		t.Fatalf("expected unknown optional transitive attribute 201 to be kept")
	}
	if a.Flags&FlagPartial == 0 {
		t.Fatalf("expected PARTIAL to be set, got flags %#x", a.Flags)
	}
	if !bytes.Equal(a.Opaque, []byte{4, 5, 6}) {
		t.Fatalf("expected opaque value to round trip, got %v", a.Opaque)
	}
}
