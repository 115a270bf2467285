// Package coordinator implements the multi-interface advertiser (C8):
// one instance per process, mapping each caller-supplied service id to a
// bundle of per-interface advertisers (C7), handling dynamic interface
// arrival/departure, cross-interface instance-name deduplication, and
// the shared hostname's generation and regeneration.
package coordinator

import (
	"net"
	"strings"
	"sync"

	"github.com/beaconmdns/beacon/internal/advertiser"
	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/errors"
	"github.com/beaconmdns/beacon/internal/records"
	"github.com/beaconmdns/beacon/internal/wire"
)

// NetworkSelector is a registration's choice of where to advertise:
// either every interface the coordinator currently knows about and any
// added later, or one interface by name.
type NetworkSelector struct {
	AllNetworks   bool
	InterfaceName string // meaningful only when AllNetworks is false
}

// AddressProvider supplies the addresses bound into a freshly generated
// hostname's A/AAAA records. Interface and address enumeration is an
// external concern (C9); the coordinator only calls this at hostname
// generation time.
type AddressProvider func() (ipv4, ipv6 net.IP)

// Callbacks notifies the caller of registration lifecycle events and
// forwards outbound packets to transmit, tagged with the interface they
// belong to.
type Callbacks struct {
	SendProbe    func(interfaceName string, info records.ProbingInfo)
	SendAnnounce func(interfaceName string, info records.AnnouncementInfo)

	OnRegisterSucceeded func(serviceID uint64, final records.ServiceRegistration)
	OnRegisterFailed    func(serviceID uint64, err error)
	OnServiceUpdated    func(serviceID uint64)
	OnServiceConflict   func(serviceID uint64, kind errors.ConflictKind)
}

// registration is C8's master-list entry for one caller-supplied
// service id: the registration data plus its fan-out state across every
// interface it has been attached to.
type registration struct {
	reg      records.ServiceRegistration
	selector NetworkSelector

	// ifaceServiceID maps an interface name to the id that interface's
	// advertiser assigned this registration.
	ifaceServiceID map[string]uint64

	// probingRemaining holds the interfaces still probing before
	// on_register_service_succeeded fires; empty (and succeeded=true)
	// once every attached interface has reported active.
	probingRemaining map[string]bool
	succeeded        bool

	// exiting/exitRemaining track a remove_service in flight: the
	// registration is forgotten once every interface it was attached to
	// reports its goodbye announcement complete.
	exiting       bool
	exitRemaining map[string]bool
}

type ifaceEntry struct {
	adv *advertiser.Advertiser
	// serviceByIfaceID maps this interface's own per-service ids back to
	// the coordinator-level service id, the reverse of registration's
	// ifaceServiceID for this one interface.
	serviceByIfaceID map[uint64]uint64
}

// Coordinator is the multi-interface advertiser (C8).
type Coordinator struct {
	clk   clock.Clock
	addrs AddressProvider
	cb    Callbacks

	mu            sync.Mutex
	host          records.HostRecords
	activeCount   int
	ifaces        map[string]*ifaceEntry
	registrations map[uint64]*registration
}

// New returns a Coordinator with a freshly generated hostname.
func New(clk clock.Clock, addrs AddressProvider, cb Callbacks) *Coordinator {
	c := &Coordinator{
		clk:           clk,
		addrs:         addrs,
		cb:            cb,
		ifaces:        make(map[string]*ifaceEntry),
		registrations: make(map[uint64]*registration),
	}
	c.host = c.newHostRecords()
	return c
}

func (c *Coordinator) newHostRecords() records.HostRecords {
	v4, v6 := c.addrs()
	return records.HostRecords{Hostname: records.GenerateHostname(), IPv4: v4, IPv6: v6}
}

// Hostname returns the advertiser's current shared hostname.
func (c *Coordinator) Hostname() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host.Hostname
}

// AddInterface brings up a per-interface advertiser for name, attaching
// every already-registered service whose NetworkSelector matches it. It
// is a no-op if name is already known.
func (c *Coordinator) AddInterface(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ifaces[name]; ok {
		return
	}

	iface := &ifaceEntry{serviceByIfaceID: make(map[uint64]uint64)}
	iface.adv = advertiser.New(c.clk, c.host, advertiser.Callbacks{
		SendProbe: func(info records.ProbingInfo) {
			if c.cb.SendProbe != nil {
				c.cb.SendProbe(name, info)
			}
		},
		SendAnnounce: func(info records.AnnouncementInfo) {
			if c.cb.SendAnnounce != nil {
				c.cb.SendAnnounce(name, info)
			}
		},
		OnServiceActive: func(ifaceServiceID uint64) { c.onInterfaceServiceActive(name, ifaceServiceID) },
		OnServiceFailed: func(ifaceServiceID uint64, err error) { c.onInterfaceServiceFailed(name, ifaceServiceID, err) },
		OnServiceExited: func(ifaceServiceID uint64) { c.onInterfaceServiceExited(name, ifaceServiceID) },
		OnConflict:      func(ifaceServiceID uint64, kind errors.ConflictKind) { c.onInterfaceConflict(name, ifaceServiceID, kind) },
	})
	c.ifaces[name] = iface

	for serviceID, reg := range c.registrations {
		if reg.exiting || !selectorMatches(reg.selector, name) {
			continue
		}
		c.attachLocked(serviceID, reg, name, iface)
	}
}

// RemoveInterface tears down name's advertiser with no exit
// announcements (the socket it would have sent on is already gone) and
// forgets every attachment registrations held to it.
func (c *Coordinator) RemoveInterface(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	iface, ok := c.ifaces[name]
	if !ok {
		return
	}
	iface.adv.Close()
	delete(c.ifaces, name)

	for _, reg := range c.registrations {
		delete(reg.ifaceServiceID, name)
		delete(reg.probingRemaining, name)
		if reg.exiting {
			delete(reg.exitRemaining, name)
		}
	}
	c.recomputeActiveCountLocked()
}

func (c *Coordinator) attachLocked(serviceID uint64, reg *registration, ifaceName string, iface *ifaceEntry) {
	ifaceID := iface.adv.RegisterService(reg.reg)
	reg.ifaceServiceID[ifaceName] = ifaceID
	iface.serviceByIfaceID[ifaceID] = serviceID
	if !reg.succeeded {
		reg.probingRemaining[ifaceName] = true
	}
}

func selectorMatches(sel NetworkSelector, ifaceName string) bool {
	return sel.AllNetworks || sel.InterfaceName == ifaceName
}

// AddOrUpdateService registers a new service id, or updates an existing
// one in place. An update must match the original registration exactly
// except for Subtypes and TTLOverride; any other difference fails with
// errors.ErrInternal and leaves the existing registration untouched. A
// brand-new registration whose instance name and type collide
// (case-insensitively) with an existing one is renamed before any probe
// is attached to an interface, per the first-registered-name-wins rule.
func (c *Coordinator) AddOrUpdateService(serviceID uint64, reg records.ServiceRegistration, selector NetworkSelector) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registrations[serviceID]; ok {
		if existing.exiting {
			return errors.ErrInternal
		}
		if !records.Equivalent(existing.reg, reg) {
			return errors.ErrInternal
		}
		existing.reg.Subtypes = reg.Subtypes
		existing.reg.TTLOverride = reg.TTLOverride
		for ifaceName, ifaceID := range existing.ifaceServiceID {
			iface, ok := c.ifaces[ifaceName]
			if !ok {
				continue
			}
			if err := iface.adv.UpdateSubtypes(ifaceID, reg.Subtypes); err != nil {
				return err
			}
		}
		if c.cb.OnServiceUpdated != nil {
			c.cb.OnServiceUpdated(serviceID)
		}
		return nil
	}

	for c.collidesLocked(reg) {
		reg.InstanceName = records.Rename(reg.InstanceName)
	}

	entry := &registration{
		reg:              reg,
		selector:         selector,
		ifaceServiceID:   make(map[string]uint64),
		probingRemaining: make(map[string]bool),
	}
	c.registrations[serviceID] = entry

	for ifaceName, iface := range c.ifaces {
		if !selectorMatches(selector, ifaceName) {
			continue
		}
		c.attachLocked(serviceID, entry, ifaceName, iface)
	}
	return nil
}

func instanceKey(reg records.ServiceRegistration) string {
	return strings.ToLower(reg.InstanceName) + "." + strings.ToLower(reg.ServiceType)
}

func (c *Coordinator) collidesLocked(reg records.ServiceRegistration) bool {
	key := instanceKey(reg)
	for _, existing := range c.registrations {
		if instanceKey(existing.reg) == key {
			return true
		}
	}
	return false
}

// RemoveService begins withdrawing serviceID: every interface it is
// attached to sends a goodbye announcement, and the registration is
// forgotten once all of them complete. It is a no-op if serviceID is
// unknown or already exiting.
func (c *Coordinator) RemoveService(serviceID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.registrations[serviceID]
	if !ok || reg.exiting {
		return
	}
	reg.exiting = true
	reg.exitRemaining = make(map[string]bool, len(reg.ifaceServiceID))

	if len(reg.ifaceServiceID) == 0 {
		delete(c.registrations, serviceID)
		return
	}

	for ifaceName, ifaceID := range reg.ifaceServiceID {
		iface, ok := c.ifaces[ifaceName]
		if !ok {
			continue
		}
		reg.exitRemaining[ifaceName] = true
		iface.adv.ExitService(ifaceID)
	}
}

func (c *Coordinator) onInterfaceServiceActive(ifaceName string, ifaceServiceID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	serviceID, reg := c.lookupLocked(ifaceName, ifaceServiceID)
	if reg == nil {
		return
	}

	delete(reg.probingRemaining, ifaceName)
	if !reg.succeeded && len(reg.probingRemaining) == 0 {
		reg.succeeded = true
		if c.cb.OnRegisterSucceeded != nil {
			c.cb.OnRegisterSucceeded(serviceID, reg.reg)
		}
	}
	c.recomputeActiveCountLocked()
}

func (c *Coordinator) onInterfaceServiceFailed(ifaceName string, ifaceServiceID uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	serviceID, reg := c.lookupLocked(ifaceName, ifaceServiceID)
	if reg == nil {
		return
	}
	if !reg.succeeded && c.cb.OnRegisterFailed != nil {
		c.cb.OnRegisterFailed(serviceID, err)
	}
}

func (c *Coordinator) onInterfaceServiceExited(ifaceName string, ifaceServiceID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	iface, ok := c.ifaces[ifaceName]
	if !ok {
		return
	}
	serviceID, ok := iface.serviceByIfaceID[ifaceServiceID]
	if !ok {
		return
	}
	delete(iface.serviceByIfaceID, ifaceServiceID)

	reg, ok := c.registrations[serviceID]
	if !ok {
		return
	}
	delete(reg.ifaceServiceID, ifaceName)
	if reg.exiting {
		delete(reg.exitRemaining, ifaceName)
		if len(reg.exitRemaining) == 0 {
			delete(c.registrations, serviceID)
		}
	}
	c.recomputeActiveCountLocked()
}

func (c *Coordinator) onInterfaceConflict(ifaceName string, ifaceServiceID uint64, kind errors.ConflictKind) {
	c.mu.Lock()
	serviceID, reg := c.lookupLocked(ifaceName, ifaceServiceID)
	c.mu.Unlock()

	if reg == nil {
		return
	}
	if c.cb.OnServiceConflict != nil {
		c.cb.OnServiceConflict(serviceID, kind)
	}
}

func (c *Coordinator) lookupLocked(ifaceName string, ifaceServiceID uint64) (uint64, *registration) {
	iface, ok := c.ifaces[ifaceName]
	if !ok {
		return 0, nil
	}
	serviceID, ok := iface.serviceByIfaceID[ifaceServiceID]
	if !ok {
		return 0, nil
	}
	reg, ok := c.registrations[serviceID]
	if !ok {
		return 0, nil
	}
	return serviceID, reg
}

// Repository returns the record repository (C2) backing interface
// ifaceName, for building query replies (C6). It reports false if
// ifaceName is not currently attached.
func (c *Coordinator) Repository(ifaceName string) (*records.Repository, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	iface, ok := c.ifaces[ifaceName]
	if !ok {
		return nil, false
	}
	return iface.adv.Repository(), true
}

// HandleInboundRecord forwards an inbound answer record to ifaceName's
// advertiser for conflict detection against that interface's owned
// records. It is a no-op if ifaceName is not currently attached.
func (c *Coordinator) HandleInboundRecord(ifaceName string, rr wire.ResourceRecord) {
	c.mu.Lock()
	iface, ok := c.ifaces[ifaceName]
	c.mu.Unlock()
	if !ok {
		return
	}
	iface.adv.HandleInboundRecord(rr)
}

// recomputeActiveCountLocked regenerates the shared hostname and pushes
// it to every live interface advertiser whenever the total active
// service count across all interfaces transitions from positive to
// zero, per the hostname's regeneration rule.
func (c *Coordinator) recomputeActiveCountLocked() {
	total := 0
	for _, iface := range c.ifaces {
		total += iface.adv.Repository().ActiveServiceCount()
	}
	if total == 0 && c.activeCount > 0 {
		c.host = c.newHostRecords()
		for _, iface := range c.ifaces {
			iface.adv.SetHostRecords(c.host)
		}
	}
	c.activeCount = total
}
