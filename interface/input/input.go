package input

import (
	"log"
	"sync"
	"time"

	"github.com/gvalkov/golang-evdev"
	"github.com/usedbytes/input2"
	"github.com/usedbytes/input2/button"
	"github.com/usedbytes/input2/factory"

	"github.com/usedbytes/linux-led"
)

type Button int
const (
	Cross Button = iota
	Circle
	PS
)

// Remote is a gamepad standing in for the toggle switch. Cross flips the
// virtual switch, Circle always turns it off.
type Remote struct {
	lock sync.Mutex
	level bool

	addLed func(led.RGBLED)
}

// Active is the virtual switch level.
func (r *Remote) Active() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.level
}

func (r *Remote) press(b Button) {
	r.lock.Lock()
	defer r.lock.Unlock()

	switch b {
	case Cross:
		r.level = !r.level
	case Circle:
		r.level = false
	default:
		return
	}

	log.Println("Remote: switch", r.level)
}

func (r *Remote) handleEvents(ch <-chan input2.InputEvent) {
	for ev := range ch {
		switch e := ev.(type) {
		case button.Event:
			if e.Value == button.Pressed {
				r.press(Button(e.Keycode))
			}
		}
	}
}

type buttonMap struct {
	scancode uint16
	button Button
}

// NewRemote watches for gamepads. addLed, if not nil, is given the light
// bar of each gamepad which has one.
func NewRemote(addLed func(led.RGBLED)) *Remote {
	r := &Remote{
		addLed: addLed,
	}

	stopChan := make(chan bool)

	go func() {
		sources := factory.Monitor()
		for s := range sources {
			log.Println("Source: ", s)
			conn := s.NewConnection()

			rgbled, ok := s.(led.RGBLED)
			if ok && r.addLed != nil {
				r.addLed(rgbled)
			}

			btnMap := []buttonMap{
				{ evdev.BTN_SOUTH, Cross },
				{ evdev.BTN_EAST, Circle },
				{ evdev.BTN_MODE, PS },
			}

			for _, b := range btnMap {
				button.MapButton(conn,
					&button.Button{
						Match: input2.EventMatch{evdev.EV_KEY, b.scancode},
						HoldTime: (time.Millisecond * 1500),
						Keycode: int(b.button),
					})
			}

			sub := conn.Subscribe(stopChan)
			go r.handleEvents(sub)
		}
	}()

	return r
}
