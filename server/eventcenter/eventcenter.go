// Package eventcenter collects the events the server raises about the
// lab machines, persists them and streams them to connected websocket
// subscribers.
package eventcenter

import (
	"net/http"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	dbops "github.com/grimm00/networking-learning-sub003/server/database"
	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
)

// An interface to EventCenter.
type EventCenter interface {
	AddInfoEvent(text string, objects ...interface{})
	AddWarningEvent(text string, objects ...interface{})
	AddErrorEvent(text string, objects ...interface{})
	AddEvent(event *dbmodel.Event)
	Shutdown()
	ServeHTTP(w http.ResponseWriter, req *http.Request)
}

// EventCenter. It has a channel for receiving events and a websocket
// broker for dispatching them to subscribers.
type eventCenter struct {
	db     *dbops.PgDB
	done   chan bool
	wg     *sync.WaitGroup
	events chan *dbmodel.Event

	broker *WSBroker
}

// Create new EventCenter object.
func NewEventCenter(db *dbops.PgDB) EventCenter {
	ec := &eventCenter{
		db:     db,
		done:   make(chan bool),
		wg:     &sync.WaitGroup{},
		events: make(chan *dbmodel.Event),
		broker: NewWSBroker(),
	}
	ec.wg.Add(1)
	go ec.mainLoop()

	log.Printf("Started event center")
	return ec
}

// Add an event on info level. The event is stored in the database and
// dispatched to subscribers.
func (ec *eventCenter) AddInfoEvent(text string, objects ...interface{}) {
	ec.addEvent(dbmodel.EvInfo, text, objects...)
}

// Add an event on warning level.
func (ec *eventCenter) AddWarningEvent(text string, objects ...interface{}) {
	ec.addEvent(dbmodel.EvWarning, text, objects...)
}

// Add an event on error level.
func (ec *eventCenter) AddErrorEvent(text string, objects ...interface{}) {
	ec.addEvent(dbmodel.EvError, text, objects...)
}

// Create an event without passing it to the event center. It takes the
// event level, text with optional {machine} placeholder and relating
// objects.
func CreateEvent(level dbmodel.EventLevel, text string, objects ...interface{}) *dbmodel.Event {
	event := &dbmodel.Event{
		Level: level,
	}
	for _, obj := range objects {
		switch o := obj.(type) {
		case *dbmodel.Machine:
			text = strings.ReplaceAll(text, "{machine}", o.Address)
			machineID := o.ID
			event.MachineID = &machineID
		case map[string]interface{}:
			event.Details = o
		default:
			log.Warnf("Unknown object passed to CreateEvent: %v", obj)
		}
	}
	event.Text = text
	return event
}

func (ec *eventCenter) addEvent(level dbmodel.EventLevel, text string, objects ...interface{}) {
	ec.AddEvent(CreateEvent(level, text, objects...))
}

// Queues an already created event for storing and dispatching.
func (ec *eventCenter) AddEvent(event *dbmodel.Event) {
	ec.events <- event
}

// The main loop serializes event persistence and fanout.
func (ec *eventCenter) mainLoop() {
	defer ec.wg.Done()
	for {
		select {
		case event := <-ec.events:
			if ec.db != nil {
				if err := dbmodel.AddEvent(ec.db, event); err != nil {
					log.Errorf("Problem storing event: %+v", err)
				}
			}
			ec.broker.Dispatch(event)

		case <-ec.done:
			return
		}
	}
}

// Upgrades an HTTP request to a websocket subscription on the event
// stream.
func (ec *eventCenter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ec.broker.ServeHTTP(w, req)
}

// Stops the event center and disconnects the subscribers.
func (ec *eventCenter) Shutdown() {
	log.Printf("Stopping event center")
	ec.done <- true
	ec.wg.Wait()
	ec.broker.Shutdown()
	log.Printf("Stopped event center")
}
