// Package contracts holds the ABIs of the EigenLayer core, middleware and
// pumpkit service manager contracts the operator talks to, with typed
// packing, reading and log decoding on top of them.
package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

var DelegationManagerMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"isOperator","stateMutability":"view",
	 "inputs":[{"name":"operator","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"registerAsOperator","stateMutability":"nonpayable",
	 "inputs":[
	  {"name":"registeringOperatorDetails","type":"tuple","components":[
	   {"name":"earningsReceiver","type":"address"},
	   {"name":"delegationApprover","type":"address"},
	   {"name":"stakerOptOutWindowBlocks","type":"uint32"}]},
	  {"name":"metadataURI","type":"string"}],
	 "outputs":[]}
	]`,
}

var AVSDirectoryMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"calculateOperatorAVSRegistrationDigestHash","stateMutability":"view",
	 "inputs":[
	  {"name":"operator","type":"address"},
	  {"name":"avs","type":"address"},
	  {"name":"salt","type":"bytes32"},
	  {"name":"expiry","type":"uint256"}],
	 "outputs":[{"name":"","type":"bytes32"}]}
	]`,
}

var StakeRegistryMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"operatorRegistered","stateMutability":"view",
	 "inputs":[{"name":"operator","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"registerOperatorWithSignature","stateMutability":"nonpayable",
	 "inputs":[
	  {"name":"operatorSignature","type":"tuple","components":[
	   {"name":"signature","type":"bytes"},
	   {"name":"salt","type":"bytes32"},
	   {"name":"expiry","type":"uint256"}]},
	  {"name":"signingKey","type":"address"}],
	 "outputs":[]}
	]`,
}

var ServiceManagerMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"respondToTokenData","stateMutability":"nonpayable",
	 "inputs":[
	  {"name":"task","type":"tuple","components":[
	   {"name":"tokenName","type":"string"},
	   {"name":"contractAddress","type":"address"},
	   {"name":"tokenDataCreatedBlock","type":"uint32"}]},
	  {"name":"isEligible","type":"string"},
	  {"name":"referenceTaskIndex","type":"uint32"},
	  {"name":"signature","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"respondToTokenDetails","stateMutability":"nonpayable",
	 "inputs":[
	  {"name":"task","type":"tuple","components":[
	   {"name":"tokenName","type":"string"},
	   {"name":"contractAddress","type":"address"},
	   {"name":"tokenDataCreatedBlock","type":"uint32"}]},
	  {"name":"description","type":"string"},
	  {"name":"referenceTaskIndex","type":"uint32"},
	  {"name":"signature","type":"bytes"}],
	 "outputs":[]},
	{"type":"event","name":"NewTokenDataCreated","anonymous":false,
	 "inputs":[
	  {"name":"tokenDataIndex","type":"uint32","indexed":true},
	  {"name":"tokenName","type":"string","indexed":false},
	  {"name":"contractAddress","type":"address","indexed":false}]},
	{"type":"event","name":"NewTokenDetailRequested","anonymous":false,
	 "inputs":[
	  {"name":"contractAddress","type":"address","indexed":true},
	  {"name":"tokenName","type":"string","indexed":false}]}
	]`,
}

const (
	MethodIsOperator             = "isOperator"
	MethodRegisterAsOperator     = "registerAsOperator"
	MethodCalculateDigestHash    = "calculateOperatorAVSRegistrationDigestHash"
	MethodOperatorRegistered     = "operatorRegistered"
	MethodRegisterWithSignature  = "registerOperatorWithSignature"
	MethodRespondToTokenData     = "respondToTokenData"
	MethodRespondToTokenDetails  = "respondToTokenDetails"
	EventNewTokenDataCreated     = "NewTokenDataCreated"
	EventNewTokenDetailRequested = "NewTokenDetailRequested"
)
