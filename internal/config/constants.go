package config

// MaxRuleVariables caps the number of variables a single rule may declare.
const MaxRuleVariables = 256

// AnonVarPrefix prefixes names of compiler-generated variables.
const AnonVarPrefix = "_"

// TraceEnv enables execution tracing when set in the environment.
const TraceEnv = "RULESOLVER_TRACE"
