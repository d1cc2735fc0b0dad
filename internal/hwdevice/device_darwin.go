//go:build darwin && cgo

package hwdevice

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreAudio -framework AudioToolbox -framework CoreFoundation

#include <CoreAudio/CoreAudio.h>
#include <AudioToolbox/AudioToolbox.h>
#include <mach/mach_time.h>
#include <stdlib.h>
#include <string.h>

extern OSStatus goIOProc(AudioObjectID device, const AudioTimeStamp *now,
                          const AudioBufferList *inputData, const AudioTimeStamp *inputTime,
                          AudioBufferList *outputData, const AudioTimeStamp *outputTime,
                          void *clientData);

static OSStatus cgoIOProcTrampoline(AudioObjectID inDevice,
                                     const AudioTimeStamp *inNow,
                                     const AudioBufferList *inInputData,
                                     const AudioTimeStamp *inInputTime,
                                     AudioBufferList *outOutputData,
                                     const AudioTimeStamp *outOutputTime,
                                     void *inClientData) {
    return goIOProc(inDevice, inNow, inInputData, inInputTime, outOutputData, outOutputTime, inClientData);
}

static AudioDeviceID cgoTranslateUIDToDevice(const char *uid) {
    CFStringRef uidRef = CFStringCreateWithCString(kCFAllocatorDefault, uid, kCFStringEncodingUTF8);
    if (!uidRef) return kAudioObjectUnknown;

    AudioObjectPropertyAddress addr = {
        kAudioHardwarePropertyTranslateUIDToDevice,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };

    AudioDeviceID devID = kAudioObjectUnknown;
    UInt32 size = sizeof(devID);
    OSStatus err = AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr,
                                               sizeof(uidRef), &uidRef, &size, &devID);
    CFRelease(uidRef);
    if (err != noErr) return kAudioObjectUnknown;
    return devID;
}

static Float64 cgoNominalSampleRate(AudioDeviceID devID) {
    AudioObjectPropertyAddress addr = {
        kAudioDevicePropertyNominalSampleRate,
        kAudioObjectPropertyScopeGlobal,
        kAudioObjectPropertyElementMain
    };
    Float64 rate = 0;
    UInt32 size = sizeof(rate);
    AudioObjectGetPropertyData(devID, &addr, 0, NULL, &size, &rate);
    return rate;
}

static UInt32 cgoU32Prop(AudioDeviceID devID, AudioObjectPropertySelector sel, AudioObjectPropertyScope scope) {
    AudioObjectPropertyAddress addr = { sel, scope, kAudioObjectPropertyElementMain };
    UInt32 v = 0;
    UInt32 size = sizeof(v);
    AudioObjectGetPropertyData(devID, &addr, 0, NULL, &size, &v);
    return v;
}

static OSStatus cgoCreateIOProcID(AudioDeviceID devID, void *clientData, AudioDeviceIOProcID *outProcID) {
    return AudioDeviceCreateIOProcID(devID, cgoIOProcTrampoline, clientData, outProcID);
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

// timebaseRatio converts Mach absolute-time ticks to seconds. Populated
// lazily from mach_timebase_info on first use, mirroring the original's
// hostTimeToSeconds (spec.md §4.2 step 1): Apple Silicon's timebase is not
// 1:1 like Intel's, so the ratio must be queried rather than assumed.
var timebaseOnce sync.Once
var timebaseNumer, timebaseDenom float64

func hostTimeToSeconds(hostTime uint64) float64 {
	timebaseOnce.Do(func() {
		numer, denom := machTimebaseInfo()
		timebaseNumer, timebaseDenom = float64(numer), float64(denom)
	})
	return float64(hostTime) * timebaseNumer / timebaseDenom / 1e9
}

// coreAudioDevice implements Device against the real CoreAudio HAL,
// grounded on original_source/src/HardwareDevice.cpp: open-by-UID via
// kAudioHardwarePropertyTranslateUIDToDevice, start/stop via
// AudioDeviceCreateIOProcID/AudioDeviceStart/AudioDeviceStop.
type coreAudioDevice struct {
	mu       sync.Mutex
	deviceID C.AudioDeviceID
	procID   C.AudioDeviceIOProcID
	running  bool
	callback Callback
}

// registry maps the opaque clientData pointer passed through cgo back to
// the owning Go device, since CGO callbacks cannot close over Go state
// directly.
var (
	registryMu  sync.Mutex
	registry    = map[uintptr]*coreAudioDevice{}
	registrySeq uintptr
)

func New() Device {
	return &coreAudioDevice{}
}

func (d *coreAudioDevice) Open(uid string) bool {
	cuid := C.CString(uid)
	defer C.free(unsafe.Pointer(cuid))

	devID := C.cgoTranslateUIDToDevice(cuid)
	if devID == C.kAudioObjectUnknown {
		return false
	}

	d.mu.Lock()
	d.deviceID = devID
	d.mu.Unlock()
	return true
}

func (d *coreAudioDevice) Start(callback Callback) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.deviceID == C.kAudioObjectUnknown {
		return false
	}
	if d.running {
		return true
	}

	d.callback = callback

	registryMu.Lock()
	registrySeq++
	token := registrySeq
	registry[token] = d
	registryMu.Unlock()

	var procID C.AudioDeviceIOProcID
	status := C.cgoCreateIOProcID(d.deviceID, unsafe.Pointer(token), &procID)
	if status != 0 {
		registryMu.Lock()
		delete(registry, token)
		registryMu.Unlock()
		return false
	}

	status = C.AudioDeviceStart(d.deviceID, procID)
	if status != 0 {
		C.AudioDeviceDestroyIOProcID(d.deviceID, procID)
		registryMu.Lock()
		delete(registry, token)
		registryMu.Unlock()
		return false
	}

	d.procID = procID
	d.running = true
	return true
}

func (d *coreAudioDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.deviceID == C.kAudioObjectUnknown {
		return
	}

	C.AudioDeviceStop(d.deviceID, d.procID)
	C.AudioDeviceDestroyIOProcID(d.deviceID, d.procID)
	d.procID = nil
	d.running = false
}

func (d *coreAudioDevice) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *coreAudioDevice) NominalSampleRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deviceID == C.kAudioObjectUnknown {
		return 0
	}
	return float64(C.cgoNominalSampleRate(d.deviceID))
}

func (d *coreAudioDevice) Latency(input bool) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deviceID == C.kAudioObjectUnknown {
		return 0
	}
	scope := C.AudioObjectPropertyScope(C.kAudioObjectPropertyScopeOutput)
	if input {
		scope = C.kAudioObjectPropertyScopeInput
	}
	return uint32(C.cgoU32Prop(d.deviceID, C.kAudioDevicePropertyLatency, scope))
}

func (d *coreAudioDevice) SafetyOffset(input bool) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deviceID == C.kAudioObjectUnknown {
		return 0
	}
	scope := C.AudioObjectPropertyScope(C.kAudioObjectPropertyScopeOutput)
	if input {
		scope = C.kAudioObjectPropertyScopeInput
	}
	return uint32(C.cgoU32Prop(d.deviceID, C.kAudioDevicePropertySafetyOffset, scope))
}

func (d *coreAudioDevice) BufferFrameSize() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deviceID == C.kAudioObjectUnknown {
		return 0
	}
	return uint32(C.cgoU32Prop(d.deviceID, C.kAudioDevicePropertyBufferFrameSize, C.kAudioObjectPropertyScopeGlobal))
}

//export goIOProc
func goIOProc(device C.AudioObjectID, now *C.AudioTimeStamp,
	inputData *C.AudioBufferList, inputTime *C.AudioTimeStamp,
	outputData *C.AudioBufferList, outputTime *C.AudioTimeStamp,
	clientData unsafe.Pointer) C.OSStatus {

	token := uintptr(clientData)
	registryMu.Lock()
	d := registry[token]
	registryMu.Unlock()
	if d == nil || d.callback == nil {
		return 0
	}

	var nowTS IOTimestamp
	if now != nil && (now.mFlags&C.kAudioTimeStampHostTimeValid) != 0 {
		nowTS.HostTimeSeconds = hostTimeToSeconds(uint64(now.mHostTime))
	}

	var input []byte
	if inputData != nil && inputData.mNumberBuffers > 0 {
		buf := inputData.mBuffers[0]
		input = unsafe.Slice((*byte)(buf.mData), int(buf.mDataByteSize))
	}

	var inputTS IOTimestamp
	if inputTime != nil {
		if (inputTime.mFlags & C.kAudioTimeStampSampleTimeValid) != 0 {
			inputTS.SampleTime = float64(inputTime.mSampleTime)
			inputTS.SampleTimeValid = true
		}
		if (inputTime.mFlags & C.kAudioTimeStampHostTimeValid) != 0 {
			inputTS.HostTimeSeconds = hostTimeToSeconds(uint64(inputTime.mHostTime))
		}
	}

	var output []byte
	if outputData != nil && outputData.mNumberBuffers > 0 {
		buf := outputData.mBuffers[0]
		output = unsafe.Slice((*byte)(buf.mData), int(buf.mDataByteSize))
	}

	d.callback(nowTS, input, inputTS, output)
	return 0
}

func machTimebaseInfo() (numer, denom uint32) {
	var info C.mach_timebase_info_data_t
	C.mach_timebase_info(&info)
	return uint32(info.numer), uint32(info.denom)
}
