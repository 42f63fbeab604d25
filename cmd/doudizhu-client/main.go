// Command doudizhu-client is a line-oriented probe client for the game
// server: it logs in, prints every packet the server sends and forwards
// simple bid/play commands typed on stdin.
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/doudizhu/internal/game"
	"github.com/lox/doudizhu/internal/protocol"
)

var CLI struct {
	Addr     string `short:"a" long:"addr" default:"localhost:9339" help:"Server address to connect to"`
	Account  uint32 `long:"account" required:"" help:"Account id to log in as"`
	Room     uint32 `long:"room" default:"0" help:"Room tier to join"`
	LogLevel string `short:"l" long:"log-level" default:"info" help:"Log level"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logger := log.New(os.Stderr)
	if CLI.LogLevel == "debug" {
		logger.SetLevel(log.DebugLevel)
	}

	conn, err := net.Dial("tcp", CLI.Addr)
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		ctx.Exit(1)
	}
	defer conn.Close()

	login := protocol.New(protocol.OpLogin)
	login.WriteUint32(CLI.Account)
	login.WriteUint32(CLI.Room)
	login.WriteUint32(0)
	if _, err := conn.Write(protocol.EncodeClientFrame(login)); err != nil {
		fmt.Printf("Failed to send login: %v\n", err)
		ctx.Exit(1)
	}
	logger.Info("connected", "addr", CLI.Addr, "account", CLI.Account, "room", CLI.Room)

	go readLoop(conn, logger)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := handleCommand(conn, scanner.Text()); err != nil {
			logger.Error("command failed", "error", err)
		}
	}
}

// handleCommand turns "bid <score>" and "play <combo> <card...>" lines into
// packets.
func handleCommand(conn net.Conn, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "bid":
		if len(fields) != 2 {
			return fmt.Errorf("usage: bid <score>")
		}
		score, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return err
		}
		pkt := protocol.New(protocol.OpGrabLandlord)
		pkt.WriteUint32(CLI.Account)
		pkt.WriteUint32(uint32(score))
		pkt.WriteInt32(-1)
		_, err = conn.Write(protocol.EncodeClientFrame(pkt))
		return err
	case "play":
		if len(fields) < 3 {
			return fmt.Errorf("usage: play <combo> <card...>")
		}
		combo, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return err
		}
		cards := make([]byte, game.PlayBufferSize)
		for i := range cards {
			cards[i] = game.CardTerminate
		}
		if len(fields)-2 > game.PlayBufferSize {
			return fmt.Errorf("too many cards")
		}
		for i, f := range fields[2:] {
			c, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				return err
			}
			cards[i] = byte(c)
		}
		pkt := protocol.New(protocol.OpPlayCard)
		pkt.WriteUint32(CLI.Account)
		pkt.WriteUint32(uint32(combo))
		pkt.WriteBytes(cards)
		_, err = conn.Write(protocol.EncodeClientFrame(pkt))
		return err
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func readLoop(conn net.Conn, logger *log.Logger) {
	for {
		pkt, err := readServerFrame(conn)
		if err != nil {
			logger.Info("disconnected", "error", err)
			os.Exit(0)
		}
		printPacket(pkt)
	}
}

func readServerFrame(conn net.Conn) (*protocol.Packet, error) {
	var hdr [protocol.ServerHeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	op := protocol.Opcode(binary.LittleEndian.Uint32(hdr[4:]))
	if size < 4 {
		return nil, protocol.ErrMalformedHeader
	}
	body := make([]byte, size-4)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return protocol.FromWire(op, body), nil
}

func printPacket(pkt *protocol.Packet) {
	switch pkt.Opcode() {
	case protocol.OpLoginResult:
		code, _ := pkt.Uint32()
		if code != 1 {
			fmt.Printf("login failed (code %d)\n", code)
			return
		}
		p, err := game.DecodeProfile(pkt)
		if err != nil {
			fmt.Printf("login ok, bad profile: %v\n", err)
			return
		}
		fmt.Printf("login ok: gold=%d rounds=%d wins=%d level=%d\n", p.Gold, p.Rounds, p.Wins, p.Level)
	case protocol.OpWaitStart:
		id, _ := pkt.Uint32()
		fmt.Printf("player %d joined\n", id)
	case protocol.OpCardDeal:
		candidate, _ := pkt.Uint32()
		hand, _ := pkt.Bytes(game.HandSize)
		base, _ := pkt.Bytes(game.BaseCardCount)
		fmt.Printf("dealt hand=%v base=%v (default landlord %d)\n", hand, base, candidate)
	case protocol.OpGrabLandlord:
		id, _ := pkt.Uint32()
		score, _ := pkt.Uint32()
		landlord, _ := pkt.Int32()
		fmt.Printf("player %d bid %d (landlord %d)\n", id, score, landlord)
	case protocol.OpPlayCard:
		id, _ := pkt.Uint32()
		combo, _ := pkt.Uint32()
		cards, _ := pkt.Bytes(game.PlayBufferSize)
		fmt.Printf("player %d played combo=%d cards=%v\n", id, combo, trimCards(cards))
	case protocol.OpRoundOver:
		p, err := game.DecodeProfile(pkt)
		if err != nil {
			fmt.Printf("round over, bad profile: %v\n", err)
			return
		}
		fmt.Printf("round over: gold=%d rounds=%d wins=%d score=%d level=%d\n",
			p.Gold, p.Rounds, p.Wins, p.Score, p.Level)
	case protocol.OpLogoutNotice:
		id, _ := pkt.Uint32()
		code, _ := pkt.Uint32()
		fmt.Printf("player %d left (code %d)\n", id, code)
	default:
		fmt.Printf("packet %s (%d bytes)\n", pkt.Opcode(), pkt.Len())
	}
}

func trimCards(cards []byte) []byte {
	out := make([]byte, 0, len(cards))
	for _, c := range cards {
		if c != game.CardTerminate {
			out = append(out, c)
		}
	}
	return out
}
