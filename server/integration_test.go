package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// startTestServer spins up an httptest.Server with a Hub, World and sqlite DB
// and returns the server, its WebSocket URL, and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, func()) {
	t.Helper()

	// Temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	db := openTestDB(t)
	world := NewWorld(DefaultRoomConfig(), nil, nil, false)
	go world.Run()

	hub := NewHub(db, world)
	go hub.Run()

	mux := SetupRoutes(hub, tmpDir)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, func() {
		srv.Close()
		world.Stop()
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads one message from the WebSocket. Binary frames are
// msgpack-encoded snapshots and come back wrapped as MsgState.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		var snap Snapshot
		if err := msgpack.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgState, Data: snap}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// readUntil skips interleaved messages (lobby status, snapshots) until one of
// the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Envelope {
	t.Helper()
	for i := 0; i < 20; i++ {
		env := readEnvelope(t, conn)
		if env.T == msgType {
			return env
		}
	}
	t.Fatalf("no %s message after 20 reads", msgType)
	return Envelope{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// connect dials and consumes the welcome message, returning the conn and the
// assigned player id.
func connect(t *testing.T, wsURL string) (*websocket.Conn, string) {
	t.Helper()
	conn := dialWS(t, wsURL)
	welcome := readEnvelope(t, conn)
	if welcome.T != MsgWelcome {
		t.Fatalf("expected welcome, got %s", welcome.T)
	}
	id, _ := dataMap(t, welcome)["id"].(string)
	if id == "" {
		t.Fatal("welcome carried no player id")
	}
	return conn, id
}

// ---------- UUID generation ----------

func TestGenerateUUIDFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := GenerateUUID()
		if !uuidRegex.MatchString(id) {
			t.Errorf("GenerateUUID() = %q, does not match UUID v4 format", id)
		}
	}
}

func TestGenerateUUIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateUUID()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %s", id)
		}
		seen[id] = true
	}
}

// ---------- SPA routing ----------

func TestSPARoutingRoot(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingUUIDPath(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	uuid := GenerateUUID()
	resp, err := http.Get(srv.URL + "/" + uuid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /%s status = %d, want 200", uuid, resp.StatusCode)
	}
	buf := make([]byte, 100)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	if !strings.Contains(body, "<html>") {
		t.Errorf("UUID path should serve index.html, got %q", body)
	}
}

func TestSPARoutingStaticFiles(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/js/main.js")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /js/main.js status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingNonUUIDPath(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("GET /not-a-uuid status = %d, want 404", resp.StatusCode)
	}
}

func TestCacheControlHeader(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	cc := resp.Header.Get("Cache-Control")
	if cc != "no-cache" {
		t.Errorf("expected Cache-Control: no-cache, got %q", cc)
	}
}

// ---------- HTTP API ----------

func TestTiersEndpoint(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/tiers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var tiers []TierInfo
	if err := json.NewDecoder(resp.Body).Decode(&tiers); err != nil {
		t.Fatalf("decode tiers: %v", err)
	}
	if len(tiers) != len(Tiers) {
		t.Fatalf("expected %d tiers, got %d", len(Tiers), len(tiers))
	}
	for i, ti := range tiers {
		if ti.Tier != Tiers[i].ID {
			t.Errorf("tier %d = %s, want %s", i, ti.Tier, Tiers[i].ID)
		}
		if ti.Status != LobbyWaiting {
			t.Errorf("tier %s status = %s, want waiting", ti.Tier, ti.Status)
		}
	}
}

func TestQRCodeEndpoint(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/qr?tier=bronze")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("GET /qr status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %s, want image/png", ct)
	}
	// PNG magic bytes
	buf := make([]byte, 8)
	resp.Body.Read(buf)
	if buf[1] != 'P' || buf[2] != 'N' || buf[3] != 'G' {
		t.Error("response is not a PNG")
	}
}

func TestQRCodeUnknownTier(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/qr?tier=platinum")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("GET /qr?tier=platinum status = %d, want 404", resp.StatusCode)
	}
}

func TestLeaderboardEndpointEmpty(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/leaderboard")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("GET /leaderboard status = %d, want 200", resp.StatusCode)
	}
	var entries []AllTimeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %d rows", len(entries))
	}
}

func TestMatchesEndpointRequiresPlayer(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/matches")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 400 {
		t.Errorf("GET /matches status = %d, want 400", resp.StatusCode)
	}
}

// ---------- WebSocket flow ----------

func TestWelcomeOnConnect(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, id := connect(t, wsURL)
	defer conn.Close()

	if len(id) != 16 { // 8 random bytes hex-encoded
		t.Errorf("player id %q has unexpected length", id)
	}
}

func TestTierListOverWS(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgTiers, nil)
	env := readUntil(t, conn, MsgTierList)

	raw, _ := json.Marshal(env.Data)
	var tiers []TierInfo
	json.Unmarshal(raw, &tiers)
	if len(tiers) != len(Tiers) {
		t.Fatalf("expected %d tiers, got %d", len(Tiers), len(tiers))
	}
}

func TestJoinLobbyFlow(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgJoinLobby, JoinLobbyMsg{Name: "Alice", Tier: "bronze"})
	joined := readUntil(t, conn, MsgJoined)
	if got := dataMap(t, joined)["tier"]; got != "bronze" {
		t.Errorf("joined tier = %v, want bronze", got)
	}

	// Lobby status should follow for roster members
	status := readUntil(t, conn, MsgLobbyStatus)
	d := dataMap(t, status)
	if d["status"] != LobbyWaiting {
		t.Errorf("lobby status = %v, want waiting", d["status"])
	}
	if d["humans"].(float64) != 1 {
		t.Errorf("humans = %v, want 1", d["humans"])
	}
}

func TestJoinUnknownTierRejected(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgJoinLobby, JoinLobbyMsg{Name: "Bob", Tier: "diamond"})
	readUntil(t, conn, MsgError)
}

func TestSecondJoinRejectedWhileRostered(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgJoinLobby, JoinLobbyMsg{Name: "Carol", Tier: "bronze"})
	readUntil(t, conn, MsgJoined)

	sendMsg(t, conn, MsgJoinLobby, JoinLobbyMsg{Name: "Carol", Tier: "silver"})
	readUntil(t, conn, MsgError)

	// Leaving frees the roster slot
	sendMsg(t, conn, MsgLeaveLobby, nil)
	sendMsg(t, conn, MsgJoinLobby, JoinLobbyMsg{Name: "Carol", Tier: "silver"})
	joined := readUntil(t, conn, MsgJoined)
	if got := dataMap(t, joined)["tier"]; got != "silver" {
		t.Errorf("joined tier = %v, want silver", got)
	}
}

func TestGuestNameAssigned(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	// Empty name is fine, a guest name gets assigned server-side
	sendMsg(t, conn, MsgJoinLobby, JoinLobbyMsg{Name: "", Tier: "bronze"})
	readUntil(t, conn, MsgJoined)
}

func TestSpectateWithoutLiveGame(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgSpectate, SpectateMsg{Tier: "bronze"})
	readUntil(t, conn, MsgError)
}

func TestInputBeforeJoinIgnored(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	// Binary input frame before joining any lobby; must not crash the session
	input := []byte{0x01, 0x01, 0xF4, 0x01, 0xF4, 0x00}
	if err := conn.WriteMessage(websocket.BinaryMessage, input); err != nil {
		t.Fatal(err)
	}
	sendMsg(t, conn, MsgMove, MoveMsg{X: 100, Y: 100})
	sendMsg(t, conn, MsgSplit, nil)

	// Connection still serves requests afterwards
	sendMsg(t, conn, MsgTiers, nil)
	readUntil(t, conn, MsgTierList)
}

func TestLeaveWithoutJoining(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgLeaveLobby, nil)

	sendMsg(t, conn, MsgTiers, nil)
	readUntil(t, conn, MsgTierList)
}

func TestDisconnectFreesLobbySlot(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1, _ := connect(t, wsURL)
	sendMsg(t, c1, MsgJoinLobby, JoinLobbyMsg{Name: "Ghost", Tier: "bronze"})
	readUntil(t, c1, MsgJoined)
	c1.Close()

	// Wait for the hub to process the unregister
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/tiers")
		if err != nil {
			t.Fatal(err)
		}
		var tiers []TierInfo
		json.NewDecoder(resp.Body).Decode(&tiers)
		resp.Body.Close()
		if tierPlayers(tiers, "bronze") == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("bronze roster not freed after disconnect")
}

func tierPlayers(tiers []TierInfo, id string) int {
	for _, ti := range tiers {
		if ti.Tier == id {
			return ti.Players
		}
	}
	return -1
}

// ---------- auth over WS ----------

func TestRegisterLoginProfileFlow(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgRegister, RegisterMsg{Username: "pilot", Password: "longenough1"})
	ok := readUntil(t, conn, MsgAuthOK)
	d := dataMap(t, ok)
	token, _ := d["tok"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	if d["u"] != "pilot" {
		t.Errorf("username = %v, want pilot", d["u"])
	}

	// Fresh profile has zeroed stats
	sendMsg(t, conn, MsgProfile, nil)
	profile := readUntil(t, conn, MsgProfileData)
	pd := dataMap(t, profile)
	if pd["games"].(float64) != 0 || pd["wins"].(float64) != 0 {
		t.Errorf("fresh profile should be zeroed, got %v", pd)
	}

	// Token resumes the session on a new connection
	conn2, _ := connect(t, wsURL)
	defer conn2.Close()
	sendMsg(t, conn2, MsgAuth, AuthMsg{Token: token})
	ok2 := readUntil(t, conn2, MsgAuthOK)
	if dataMap(t, ok2)["u"] != "pilot" {
		t.Errorf("token auth username = %v, want pilot", dataMap(t, ok2)["u"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgRegister, RegisterMsg{Username: "victim", Password: "longenough1"})
	readUntil(t, conn, MsgAuthOK)

	conn2, _ := connect(t, wsURL)
	defer conn2.Close()
	sendMsg(t, conn2, MsgLogin, LoginMsg{Username: "victim", Password: "wrongpass99"})
	readUntil(t, conn2, MsgError)
}

func TestProfileRequiresAuth(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	conn, _ := connect(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgProfile, nil)
	readUntil(t, conn, MsgError)
}

// ---------- hub ----------

func TestHubClientCount(t *testing.T) {
	db := openTestDB(t)
	world := NewWorld(DefaultRoomConfig(), nil, nil, false)
	defer world.Stop()
	hub := NewHub(db, world)
	go hub.Run()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

// ---------- util ----------

func TestGenerateIDLength(t *testing.T) {
	id := GenerateID(4)
	if len(id) != 8 { // 4 bytes = 8 hex chars
		t.Errorf("expected 8 chars, got %d: %s", len(id), id)
	}

	id2 := GenerateID(8)
	if len(id2) != 16 {
		t.Errorf("expected 16 chars, got %d: %s", len(id2), id2)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, min, max, want float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}
	for _, tt := range tests {
		got := Clamp(tt.v, tt.min, tt.max)
		if got != tt.want {
			t.Errorf("Clamp(%f, %f, %f) = %f, want %f", tt.v, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestDistance(t *testing.T) {
	d := Distance(0, 0, 3, 4)
	if d != 5 {
		t.Errorf("Distance(0,0,3,4) = %f, want 5", d)
	}
}

// Every live room's tick goroutine draws from the shared source; run with
// -race.
func TestRandFloatConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				v := randFloat()
				if v < 0 || v >= 1 {
					t.Errorf("randFloat() = %f, out of [0, 1)", v)
				}
			}
		}()
	}
	wg.Wait()
}
