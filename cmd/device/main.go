// Reference reader device: captures microphone audio with portaudio and
// streams it to the fablebox server over WebSocket. Space toggles
// listening, q quits.
package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/gordonklaus/portaudio"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

const (
	sampleRate      = 16000
	framesPerBuffer = 1024
)

type deviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

type deviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

type serverMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Position   int    `json:"position,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Cue        *struct {
		Category  string `json:"category"`
		Keyword   string `json:"keyword"`
		SoundFile string `json:"sound_file"`
	} `json:"cue,omitempty"`
}

func main() {
	godotenv.Load()

	server := flag.String("server", envOr("FABLEBOX_SERVER", "localhost:8080"), "server host:port")
	serial := flag.String("serial", envOr("FABLEBOX_SERIAL", "FABLEBOX001"), "device serial number")
	secret := flag.String("secret", envOr("FABLEBOX_SECRET", "secret123"), "device secret key")
	bookID := flag.String("book", "three-little-pigs", "book to read")
	flag.Parse()

	token, deviceID, err := authenticate(*server, *serial, *secret)
	if err != nil {
		log.Fatal("Failed to authenticate device: ", err)
	}
	log.Printf("Authenticated as device %s", deviceID)

	conn, err := dial(*server, token)
	if err != nil {
		log.Fatal("Failed to connect: ", err)
	}
	defer conn.Close()

	go readServerMessages(conn)

	if err := portaudio.Initialize(); err != nil {
		log.Fatal("Failed to initialize portaudio: ", err)
	}
	defer portaudio.Terminate()

	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buffer)
	if err != nil {
		log.Fatal("Failed to open microphone: ", err)
	}
	defer stream.Close()

	if err := keyboard.Open(); err != nil {
		log.Fatal("Failed to open keyboard: ", err)
	}
	defer keyboard.Close()

	fmt.Printf("Reading %q. Press SPACE to start/stop reading aloud, q to quit.\n", *bookID)

	var listening atomic.Bool
	captureDone := make(chan struct{}, 1)

	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			log.Fatal("Keyboard error: ", err)
		}

		switch {
		case char == 'q' || key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
			if listening.Load() {
				listening.Store(false)
				<-captureDone
				sendJSON(conn, map[string]interface{}{"type": "reading_end"})
			}
			sendJSON(conn, map[string]interface{}{"type": "reading_finish"})
			log.Println("Bye")
			return

		case key == keyboard.KeySpace:
			if listening.Load() {
				listening.Store(false)
				<-captureDone
				sendJSON(conn, map[string]interface{}{"type": "reading_end"})
				fmt.Println("-- stopped listening --")
				continue
			}

			sendJSON(conn, map[string]interface{}{
				"type":        "reading_start",
				"book_id":     *bookID,
				"sample_rate": sampleRate,
				"encoding":    "LINEAR16",
				"language":    "en-US",
			})
			listening.Store(true)
			go capture(conn, stream, buffer, &listening, captureDone)
			fmt.Println("-- listening, read aloud --")
		}
	}
}

func capture(conn *websocket.Conn, stream *portaudio.Stream, buffer []int16, listening *atomic.Bool, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	if err := stream.Start(); err != nil {
		log.Println("Failed to start microphone: ", err)
		return
	}
	defer stream.Stop()

	for listening.Load() {
		if err := stream.Read(); err != nil {
			log.Println("Microphone read error: ", err)
			return
		}

		var buf bytes.Buffer
		for _, sample := range buffer {
			binary.Write(&buf, binary.LittleEndian, sample)
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			log.Println("Failed to send audio chunk: ", err)
			return
		}
	}
}

func readServerMessages(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Println("Connection closed: ", err)
			os.Exit(1)
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "transcript":
			fmt.Printf("heard [%d]: %s\n", msg.Position, msg.Transcript)
		case "cue_detected":
			if msg.Cue != nil {
				fmt.Printf("*** cue %s (%q) -> %s\n", msg.Cue.Category, msg.Cue.Keyword, msg.Cue.SoundFile)
			}
		case "error":
			fmt.Printf("server error: %s\n", msg.Message)
		}
	}
}

func authenticate(server, serial, secret string) (token, deviceID string, err error) {
	payload, _ := json.Marshal(deviceAuthRequest{
		SerialNumber: serial,
		SecretKey:    secret,
	})

	resp, err := http.Post(
		fmt.Sprintf("http://%s/api/v1/device/auth", server),
		"application/json",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("auth failed with status %d", resp.StatusCode)
	}

	var auth deviceAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", "", err
	}

	return auth.Token, auth.DeviceID, nil
}

func dial(server, token string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: server, Path: "/ws"}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	return conn, err
}

func sendJSON(conn *websocket.Conn, v interface{}) {
	data, _ := json.Marshal(v)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Println("Failed to send message: ", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
