// Package feed decodes the two little-endian, length-framed, packed binary
// UDP multicast protocols the service consumes: market data (order book
// events) and clearing (fills). Decoding is a pure, allocation-light step —
// framing checks happen here; sequence-gap detection and hand-off of decoded
// events happen in the receivers (receiver.go), and dispatch to the order
// book / clearing store happens in the callbacks the engine passes to them.
package feed

import (
	"encoding/binary"

	"etfservice/pkg/types"
)

// Market data magic: the ASCII bytes "GOIRISH!" read as a little-endian u64.
const mdMagic uint64 = 0x21_48_53_49_52_49_4F_47

// Clearing magic: a fixed sentinel constant for the clearing protocol.
const clearingMagic uint64 = 0x12345678

// Market data message types.
const (
	mdHeartbeat    = 0
	mdNewOrder     = 1
	mdDeleteOrder  = 2
	mdModifyOrder  = 3
	mdTrade        = 4
	mdTradeSummary = 5
	mdSnapshotInfo = 6
)

// Clearing message types.
const (
	clHeartbeat = 0
	clFill      = 1
)

const (
	mdHeaderSize = 23 // magic(8) + length(2) + seq_num(4) + timestamp(8) + msg_type(1)
	clHeaderSize = 15 // magic(8) + length(2) + seq_num(4) + msg_type(1)

	mdNewOrderBodySize    = 8 + 4 + 1 + 4 + 4 + 1 // order_id, symbol, side, quantity, price, flags
	mdDeleteOrderBodySize = 8                     // order_id
	mdModifyOrderBodySize = 8 + 1 + 4 + 4         // order_id, side, quantity, price

	clFillBodySize = 4 + 4 + 4 + 4 + 1 // client_id, symbol, quantity, price, side
)

// EventKind identifies which typed event a decode produced.
type EventKind uint8

const (
	EventNone EventKind = iota
	EventNewOrder
	EventDeleteOrder
	EventModifyOrder
	EventFill
)

// MDEvent is the result of decoding one market data datagram. Kind is
// EventNone for heartbeats, ignored trade/summary/snapshot messages, and
// unknown message types — none of these carry BBO-relevant data.
type MDEvent struct {
	Kind      EventKind
	SeqNum    uint32
	Timestamp uint64
	NewOrder  types.NewOrderEvent
	Delete    types.DeleteOrderEvent
	Modify    types.ModifyOrderEvent
}

// CLEvent is the result of decoding one clearing datagram.
type CLEvent struct {
	Kind   EventKind
	SeqNum uint32
	Fill   types.FillEvent
}

// DecodeMD parses one market data datagram. ok is false if the datagram is
// malformed: too short for its header, too short for its declared body, or
// carrying the wrong magic number — per spec these are silently dropped.
func DecodeMD(buf []byte) (MDEvent, bool) {
	var evt MDEvent
	if len(buf) < mdHeaderSize {
		return evt, false
	}

	magic := binary.LittleEndian.Uint64(buf[0:8])
	if magic != mdMagic {
		return evt, false
	}
	seqNum := binary.LittleEndian.Uint32(buf[10:14])
	timestamp := binary.LittleEndian.Uint64(buf[14:22])
	msgType := buf[22]

	evt.SeqNum = seqNum
	evt.Timestamp = timestamp

	body := buf[mdHeaderSize:]

	switch msgType {
	case mdHeartbeat:
		evt.Kind = EventNone
		return evt, true

	case mdNewOrder:
		if len(body) < mdNewOrderBodySize {
			return evt, false
		}
		evt.Kind = EventNewOrder
		evt.NewOrder = types.NewOrderEvent{
			OrderID:  binary.LittleEndian.Uint64(body[0:8]),
			Symbol:   binary.LittleEndian.Uint32(body[8:12]),
			Side:     types.Side(body[12]),
			Quantity: binary.LittleEndian.Uint32(body[13:17]),
			Price:    int32(binary.LittleEndian.Uint32(body[17:21])),
			Flags:    body[21],
		}
		return evt, true

	case mdDeleteOrder:
		if len(body) < mdDeleteOrderBodySize {
			return evt, false
		}
		evt.Kind = EventDeleteOrder
		evt.Delete = types.DeleteOrderEvent{
			OrderID: binary.LittleEndian.Uint64(body[0:8]),
		}
		return evt, true

	case mdModifyOrder:
		if len(body) < mdModifyOrderBodySize {
			return evt, false
		}
		evt.Kind = EventModifyOrder
		evt.Modify = types.ModifyOrderEvent{
			OrderID:  binary.LittleEndian.Uint64(body[0:8]),
			Side:     types.Side(body[8]),
			Quantity: binary.LittleEndian.Uint32(body[9:13]),
			Price:    int32(binary.LittleEndian.Uint32(body[13:17])),
		}
		return evt, true

	case mdTrade, mdTradeSummary, mdSnapshotInfo:
		// Ignored for BBO purposes, but still a valid frame.
		evt.Kind = EventNone
		return evt, true

	default:
		// Unknown msg_type: skipped without error, frame itself was valid.
		evt.Kind = EventNone
		return evt, true
	}
}

// DecodeCL parses one clearing datagram. Same malformed-frame contract as DecodeMD.
func DecodeCL(buf []byte) (CLEvent, bool) {
	var evt CLEvent
	if len(buf) < clHeaderSize {
		return evt, false
	}

	magic := binary.LittleEndian.Uint64(buf[0:8])
	if magic != clearingMagic {
		return evt, false
	}
	seqNum := binary.LittleEndian.Uint32(buf[10:14])
	msgType := buf[14]

	evt.SeqNum = seqNum

	body := buf[clHeaderSize:]

	switch msgType {
	case clHeartbeat:
		evt.Kind = EventNone
		return evt, true

	case clFill:
		if len(body) < clFillBodySize {
			return evt, false
		}
		evt.Kind = EventFill
		evt.Fill = types.FillEvent{
			ClientID: binary.LittleEndian.Uint32(body[0:4]),
			Symbol:   binary.LittleEndian.Uint32(body[4:8]),
			Quantity: binary.LittleEndian.Uint32(body[8:12]),
			Price:    int32(binary.LittleEndian.Uint32(body[12:16])),
			Side:     types.Side(body[16]),
		}
		return evt, true

	default:
		evt.Kind = EventNone
		return evt, true
	}
}
