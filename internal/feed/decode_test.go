package feed

import (
	"encoding/binary"
	"testing"

	"etfservice/pkg/types"
)

func mdHeader(length uint16, seq uint32, timestamp uint64, msgType uint8) []byte {
	buf := make([]byte, mdHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], mdMagic)
	binary.LittleEndian.PutUint16(buf[8:10], length)
	binary.LittleEndian.PutUint32(buf[10:14], seq)
	binary.LittleEndian.PutUint64(buf[14:22], timestamp)
	buf[22] = msgType
	return buf
}

func clHeader(length uint16, seq uint32, msgType uint8) []byte {
	buf := make([]byte, clHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], clearingMagic)
	binary.LittleEndian.PutUint16(buf[8:10], length)
	binary.LittleEndian.PutUint32(buf[10:14], seq)
	buf[14] = msgType
	return buf
}

func TestDecodeMDNewOrder(t *testing.T) {
	t.Parallel()

	buf := mdHeader(0, 42, 123456789, mdNewOrder)
	body := make([]byte, mdNewOrderBodySize)
	binary.LittleEndian.PutUint64(body[0:8], 7)
	binary.LittleEndian.PutUint32(body[8:12], 3)
	body[12] = byte(types.SideBuy)
	binary.LittleEndian.PutUint32(body[13:17], 10)
	binary.LittleEndian.PutUint32(body[17:21], 90)
	body[21] = 0
	buf = append(buf, body...)

	evt, ok := DecodeMD(buf)
	if !ok {
		t.Fatal("DecodeMD returned ok=false for a well-formed NEW_ORDER frame")
	}
	if evt.Kind != EventNewOrder {
		t.Fatalf("Kind = %v, want EventNewOrder", evt.Kind)
	}
	if evt.SeqNum != 42 {
		t.Errorf("SeqNum = %d, want 42", evt.SeqNum)
	}
	want := types.NewOrderEvent{OrderID: 7, Symbol: 3, Side: types.SideBuy, Quantity: 10, Price: 90}
	if evt.NewOrder != want {
		t.Errorf("NewOrder = %+v, want %+v", evt.NewOrder, want)
	}
}

func TestDecodeMDHeartbeatIsEventNone(t *testing.T) {
	t.Parallel()

	buf := mdHeader(0, 1, 0, mdHeartbeat)
	evt, ok := DecodeMD(buf)
	if !ok || evt.Kind != EventNone {
		t.Errorf("DecodeMD(heartbeat) = (%+v, %v), want (EventNone, true)", evt, ok)
	}
}

func TestDecodeMDBadMagicRejected(t *testing.T) {
	t.Parallel()

	buf := mdHeader(0, 1, 0, mdHeartbeat)
	buf[0] ^= 0xFF
	if _, ok := DecodeMD(buf); ok {
		t.Error("DecodeMD accepted a frame with a corrupted magic number")
	}
}

func TestDecodeMDShortBufferRejected(t *testing.T) {
	t.Parallel()

	if _, ok := DecodeMD(make([]byte, mdHeaderSize-1)); ok {
		t.Error("DecodeMD accepted a buffer shorter than the header")
	}
}

func TestDecodeMDTruncatedBodyRejected(t *testing.T) {
	t.Parallel()

	buf := mdHeader(0, 1, 0, mdNewOrder)
	buf = append(buf, make([]byte, mdNewOrderBodySize-1)...)
	if _, ok := DecodeMD(buf); ok {
		t.Error("DecodeMD accepted a NEW_ORDER frame with a truncated body")
	}
}

func TestDecodeMDUnknownMsgTypeIsEventNone(t *testing.T) {
	t.Parallel()

	buf := mdHeader(0, 1, 0, 250)
	evt, ok := DecodeMD(buf)
	if !ok || evt.Kind != EventNone {
		t.Errorf("DecodeMD(unknown type) = (%+v, %v), want (EventNone, true)", evt, ok)
	}
}

func TestDecodeCLFill(t *testing.T) {
	t.Parallel()

	buf := clHeader(0, 5, clFill)
	body := make([]byte, clFillBodySize)
	binary.LittleEndian.PutUint32(body[0:4], 9)
	binary.LittleEndian.PutUint32(body[4:8], 13)
	binary.LittleEndian.PutUint32(body[8:12], 3)
	binary.LittleEndian.PutUint32(body[12:16], 110)
	body[16] = byte(types.SideSell)
	buf = append(buf, body...)

	evt, ok := DecodeCL(buf)
	if !ok {
		t.Fatal("DecodeCL returned ok=false for a well-formed FILL frame")
	}
	want := types.FillEvent{ClientID: 9, Symbol: 13, Quantity: 3, Price: 110, Side: types.SideSell}
	if evt.Fill != want {
		t.Errorf("Fill = %+v, want %+v", evt.Fill, want)
	}
}

func TestDecodeCLBadMagicRejected(t *testing.T) {
	t.Parallel()

	buf := clHeader(0, 1, clHeartbeat)
	buf[0] ^= 0xFF
	if _, ok := DecodeCL(buf); ok {
		t.Error("DecodeCL accepted a frame with a corrupted magic number")
	}
}

func TestSequenceTrackerGapDetection(t *testing.T) {
	t.Parallel()

	var tr SequenceTracker
	if gap := tr.Observe(1); gap {
		t.Error("first observed sequence must never count as a gap")
	}
	if gap := tr.Observe(2); gap {
		t.Error("Observe(2) after 1 reported a gap, want none")
	}
	if gap := tr.Observe(5); !gap {
		t.Error("Observe(5) after 2 did not report a gap")
	}
	if gap := tr.Observe(6); gap {
		t.Error("cursor did not advance past the gap")
	}
}
